package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/iplens/iplens/internal/server/handlers"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, runtime and dependency details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := GetAppIdentity()
		out := cmd.OutOrStdout()

		extended, _ := cmd.Flags().GetBool("extended")
		asJSON, _ := cmd.Flags().GetBool("json")

		handlers.SetAppIdentity(identity)

		if asJSON {
			data, err := json.MarshalIndent(handlers.CurrentVersion(), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		}

		fmt.Fprintf(out, "%s %s\n", identity.BinaryName, versionInfo.Version)
		if !extended {
			return nil
		}

		info := handlers.CurrentVersion()
		fmt.Fprintf(out, "Commit: %s\n", versionInfo.Commit)
		fmt.Fprintf(out, "Built: %s\n", versionInfo.BuildDate)
		fmt.Fprintf(out, "Go: %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Gofulmen: %s\n", info.Dependencies.Gofulmen)
		fmt.Fprintf(out, "Crucible: %s\n", info.Dependencies.Crucible)
		for _, name := range sortedKeys(info.Dependencies.Modules) {
			fmt.Fprintf(out, "%s: %s\n", name, info.Dependencies.Modules[name])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("extended", "e", false, "show extended version information")
	versionCmd.Flags().Bool("json", false, "print the same document as GET /version")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
