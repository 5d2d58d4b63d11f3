package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iplens/iplens/internal/config"
	"github.com/iplens/iplens/internal/core"
	"github.com/iplens/iplens/internal/observability"
)

// dnsblTestPoint is the address every DNSBL lists for operational testing.
const dnsblTestPoint = "127.0.0.2"

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the local installation and its upstreams.

The blacklist check queries the 127.0.0.2 test point on every configured list;
a reachable list reports it as listed. Use --offline to skip network checks.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		identity := GetAppIdentity()
		offline, _ := cmd.Flags().GetBool("offline")

		log.Info("=== " + identity.BinaryName + " doctor ===")
		log.Info("")

		allChecks := true
		total := 6
		step := func(i int, label string) string {
			return fmt.Sprintf("[%d/%d] %s...", i, total, label)
		}

		goVersion := runtime.Version()
		log.Info(step(1, "Checking Go runtime")+" ✅ "+goVersion,
			zap.String("go_version", goVersion),
			zap.String("platform", runtime.GOOS+"/"+runtime.GOARCH))

		version := crucible.GetVersion()
		if version.Gofulmen != "" && version.Crucible != "" {
			log.Info(fmt.Sprintf("%s ✅ gofulmen v%s, crucible v%s", step(2, "Checking Fulmen libraries"), version.Gofulmen, version.Crucible))
		} else {
			log.Warn(step(2, "Checking Fulmen libraries") + " ⚠️  version metadata unavailable")
			allChecks = false
		}

		if dir := gfconfig.GetAppConfigDir(identity.ConfigName); dir != "" {
			log.Info(step(3, "Checking config directory")+" ✅ "+filepath.Clean(dir), zap.String("config_dir", dir))
		} else {
			log.Warn(step(3, "Checking config directory") + " ⚠️  cannot resolve (using ./config and $HOME)")
		}

		cfg, err := loadConfig()
		if err != nil {
			log.Error(step(4, "Checking configuration")+" ❌ invalid", zap.Error(err))
			log.Warn(step(5, "Checking blacklists") + " ⚠️  skipped (config not loaded)")
			log.Warn(step(6, "Checking stats backend") + " ⚠️  skipped (config not loaded)")
			finishDoctor(identity.BinaryName, false)
			return
		}
		log.Info(fmt.Sprintf("%s ✅ %d lists, window %s", step(4, "Checking configuration"), len(cfg.DNSBL.Lists), cfg.Admission.Window))

		if offline {
			log.Info(step(5, "Checking blacklists") + " ⏭  skipped (--offline)")
			log.Info(step(6, "Checking stats backend") + " ⏭  skipped (--offline)")
			finishDoctor(identity.BinaryName, allChecks)
			return
		}

		if !doctorCheckLists(cmd.Context(), cfg, step(5, "Checking blacklists")) {
			allChecks = false
		}

		stats, err := buildStats(cfg)
		if err != nil {
			log.Error(step(6, "Checking stats backend") + " ❌ " + err.Error())
			allChecks = false
		} else {
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
			pingErr := stats.Ping(ctx)
			cancel()
			_ = stats.Close()
			if pingErr != nil {
				log.Warn(step(6, "Checking stats backend")+" ⚠️  "+cfg.Stats.Backend+" unreachable", zap.Error(pingErr))
				allChecks = false
			} else {
				log.Info(step(6, "Checking stats backend") + " ✅ " + cfg.Stats.Backend)
			}
		}

		finishDoctor(identity.BinaryName, allChecks)
	},
}

// doctorCheckLists probes the test point and reports one line per list.
func doctorCheckLists(ctx context.Context, cfg *config.Config, label string) bool {
	log := observability.CLILogger
	result, err := buildAggregator(cfg).CheckAll(ctx, dnsblTestPoint, cfg.DNSBL.Lists)
	if err != nil {
		log.Error(label+" ❌", zap.Error(err))
		return false
	}

	ok := result.Errored() == 0
	if ok {
		log.Info(fmt.Sprintf("%s ✅ %d/%d lists answered", label, result.Total, result.Total))
	} else {
		log.Warn(fmt.Sprintf("%s ⚠️  %d/%d lists unreachable", label, result.Errored(), result.Total))
	}
	for _, check := range result.Checks {
		log.Info("       " + testPointStatus(check))
	}
	return ok
}

func testPointStatus(check core.ProbeOutcome) string {
	switch {
	case check.Error:
		return fmt.Sprintf("%s: unreachable or timed out", check.Name)
	case check.Listed:
		return fmt.Sprintf("%s: ok (test point listed)", check.Name)
	default:
		return fmt.Sprintf("%s: answered, test point not listed (resolver may be filtered)", check.Name)
	}
}

func finishDoctor(name string, healthy bool) {
	log := observability.CLILogger
	log.Info("")
	if healthy {
		log.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", name))
	} else {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	log.Info("")
	log.Info("=== End Diagnostics ===")
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().Bool("offline", false, "skip blacklist and stats backend network checks")
}
