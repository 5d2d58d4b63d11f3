package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/iplens/iplens/internal/observability"
	"github.com/iplens/iplens/internal/output"
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Show the configured DNS blacklists",
	Long:  "Print the blacklist catalog resolved from dnsbl.lists_file, dnsbl.lists or the built-in defaults, in query order.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", err)
			return err
		}

		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		out, err := cmd.Flags().GetString("out")
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatLists(cfg.DNSBL.Lists)
		if err != nil {
			return err
		}

		sink, err := openSink(out)
		if err != nil {
			return err
		}
		defer sink.close() //nolint:errcheck

		_, err = fmt.Fprintln(sink.writer, strings.TrimRight(rendered, "\n"))
		return err
	},
}

func init() {
	rootCmd.AddCommand(listsCmd)

	listsCmd.Flags().String("output-format", "table", "output format: table, json, markdown")
	listsCmd.Flags().String("out", "", "write output to a file (default stdout)")
}
