package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iplens/iplens/internal/config"
	"github.com/iplens/iplens/internal/core"
	"github.com/iplens/iplens/internal/core/dnsbl"
	"github.com/iplens/iplens/internal/observability"
	"github.com/iplens/iplens/internal/output"
)

// errListed is returned when --fail-on-listed is set and an address is listed.
var errListed = errors.New("address is listed")

var checkCmd = &cobra.Command{
	Use:   "check <ip> [ip...]",
	Short: "Check IP addresses against the configured DNS blacklists",
	Long: `Query every configured DNS blacklist for each address and print the
verdicts. Lists that time out or fail are reported as ERROR and never count as
listed.

Examples:
  iplens check 127.0.0.2
  iplens check 2001:db8::1 --output-format json
  iplens check 192.0.2.1 198.51.100.7 --out-dir ./reports`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", err)
			return err
		}
		if err := applyCheckOverrides(cmd, cfg); err != nil {
			return err
		}

		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		outPath, outDir, err := resolveOutputTargets(cmd)
		if err != nil {
			return err
		}
		if outDir, err = ensureOutDir(outDir); err != nil {
			return err
		}

		aggregator := buildAggregator(cfg)
		formatter := output.NewFormatter(format)

		var sink *outputSink
		if outDir == "" {
			if sink, err = openSink(outPath); err != nil {
				return err
			}
			defer sink.close() //nolint:errcheck
		}

		listedAny := false
		for _, ip := range args {
			result, err := runCheck(cmd.Context(), aggregator, ip, cfg.DNSBL.Lists)
			if err != nil {
				return err
			}
			if result.ListedCount > 0 {
				listedAny = true
			}

			rendered, err := formatter.FormatCheck(ip, result)
			if err != nil {
				return err
			}

			target := sink
			if outDir != "" {
				name := fmt.Sprintf("%s.%s", sanitizeFilename(ip), outputExtension(format))
				if target, err = openSink(filepath.Join(outDir, name)); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(target.writer, strings.TrimRight(rendered, "\n")); err != nil {
				return err
			}
			if outDir != "" {
				if err := target.close(); err != nil {
					return err
				}
				observability.CLILogger.Info("Wrote report", zap.String("ip", ip), zap.String("path", target.path))
			}
		}

		failOnListed, _ := cmd.Flags().GetBool("fail-on-listed")
		if failOnListed && listedAny {
			return errListed
		}
		return nil
	},
}

func runCheck(ctx context.Context, checker *dnsbl.Aggregator, ip string, lists []core.BlacklistDefinition) (*core.AggregateResult, error) {
	start := time.Now()
	result, err := checker.CheckAll(ctx, strings.TrimSpace(ip), lists)
	if errors.Is(err, dnsbl.ErrInvalidAddressFormat) {
		return nil, fmt.Errorf("invalid IP address format: %q", ip)
	}
	if err != nil {
		return nil, err
	}
	observability.CLILogger.Debug("Check completed",
		zap.String("ip", ip),
		zap.Int("listed", result.ListedCount),
		zap.Int("errored", result.Errored()),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// applyCheckOverrides lets flags override the resolver and timeout settings
// for a single run.
func applyCheckOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		timeout, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		if timeout <= 0 {
			return fmt.Errorf("--timeout must be positive")
		}
		cfg.DNSBL.Timeout = timeout
	}
	if flags.Changed("nameserver") {
		ns, err := flags.GetString("nameserver")
		if err != nil {
			return err
		}
		cfg.DNSBL.Nameserver = strings.TrimSpace(ns)
	}
	if flags.Changed("resolver") {
		resolver, err := flags.GetString("resolver")
		if err != nil {
			return err
		}
		cfg.DNSBL.Resolver = strings.ToLower(strings.TrimSpace(resolver))
	}
	return cfg.Validate()
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("output-format", "table", "output format: table, json, markdown")
	checkCmd.Flags().String("out", "", "write output to a file (default stdout)")
	checkCmd.Flags().String("out-dir", "", "write one report per address into this directory")
	checkCmd.Flags().Duration("timeout", dnsbl.DefaultTimeout, "per-list query timeout")
	checkCmd.Flags().String("resolver", config.ResolverSystem, "resolver: system or direct")
	checkCmd.Flags().String("nameserver", "", "nameserver to query (host or host:port)")
	checkCmd.Flags().Bool("fail-on-listed", false, "exit non-zero when any address is listed")
}
