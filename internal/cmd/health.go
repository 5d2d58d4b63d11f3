package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iplens/iplens/internal/core/dnsbl"
	errwrap "github.com/iplens/iplens/internal/errors"
	"github.com/iplens/iplens/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify that the service could start: version info, configuration, list catalog, address encoding and stats backend.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		if log == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		log.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		log.Info("✅ Configuration valid")

		if len(cfg.DNSBL.Lists) == 0 {
			ExitWithCode(log, foundry.ExitConfigInvalid, "No blacklists configured", errwrap.NewConfigInvalidError("no blacklists configured"))
			return
		}
		log.Info("✅ Blacklist catalog loaded", zap.Int("lists", len(cfg.DNSBL.Lists)))

		if reversed, err := dnsbl.EncodeForQuery("127.0.0.2"); err != nil || reversed != "2.0.0.127" {
			ExitWithCode(log, foundry.ExitFailure, "Address encoder self-test failed", err)
			return
		}
		log.Info("✅ Address encoder self-test passed")

		stats, err := buildStats(cfg)
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Invalid stats backend", err)
			return
		}
		defer stats.Close() //nolint:errcheck

		ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		defer cancel()
		if err := stats.Ping(ctx); err != nil {
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Stats backend unreachable", err)
			return
		}
		log.Info("✅ Stats backend ready", zap.String("backend", cfg.Stats.Backend))

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
