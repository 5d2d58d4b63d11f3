package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/iplens/iplens/internal/config"
	"github.com/iplens/iplens/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display application, runtime and effective configuration details.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		log.Info("=== " + identity.BinaryName + " environment ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("  Env prefix: " + identity.EnvPrefix)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  Platform:   " + runtime.GOOS + "/" + runtime.GOARCH)
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = "(none)"
		}

		log.Info("Configuration:")
		log.Info("  Config File:    " + configFile)
		log.Info(fmt.Sprintf("  Listen:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info(fmt.Sprintf("  Trust Proxy:    %t", cfg.Server.TrustProxyHeaders))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		if cfg.Metrics.Enabled {
			log.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port))
		} else {
			log.Info("  Metrics:        disabled")
		}
		log.Info("")

		log.Info("Admission:")
		log.Info("  Window:         " + cfg.Admission.Window.String())
		log.Info("  Sweep Interval: " + cfg.Admission.SweepInterval.String())
		for _, endpoint := range sortedKeys(cfg.RateLimits) {
			log.Info(fmt.Sprintf("  Limit %-9s %d/window", endpoint+":", cfg.RateLimits[endpoint]))
		}
		log.Info("  Stats Backend:  " + cfg.Stats.Backend)
		if strings.EqualFold(cfg.Stats.Backend, config.StatsRedis) {
			log.Info("  Redis Addr:     " + cfg.Stats.Redis.Addr)
		}
		log.Info("")

		log.Info("DNSBL:")
		log.Info("  Resolver:       " + cfg.DNSBL.Resolver)
		if cfg.DNSBL.Nameserver != "" {
			log.Info("  Nameserver:     " + cfg.DNSBL.Nameserver)
		}
		log.Info("  Timeout:        " + cfg.DNSBL.Timeout.String())
		if cfg.DNSBL.UpstreamQPS > 0 {
			log.Info(fmt.Sprintf("  Upstream QPS:   %.1f (burst %d)", cfg.DNSBL.UpstreamQPS, cfg.DNSBL.UpstreamBurst))
		}
		if cfg.DNSBL.ListsFile != "" {
			log.Info("  Lists File:     " + cfg.DNSBL.ListsFile)
		}
		for _, list := range cfg.DNSBL.Lists {
			log.Info(fmt.Sprintf("  - %s (%s)", list.Name, list.Host))
		}
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
