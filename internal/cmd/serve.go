package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/iplens/iplens/internal/config"
	errwrap "github.com/iplens/iplens/internal/errors"
	"github.com/iplens/iplens/internal/metrics"
	"github.com/iplens/iplens/internal/observability"
	"github.com/iplens/iplens/internal/server"
	"github.com/iplens/iplens/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server exposing GET /blacklist?ip=<address> behind the
per-client admission controller.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-validate the config file (restart to apply changes)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := GetAppIdentity()

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", err)
			return err
		}

		observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, identity.BinaryName)
		log := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, identity.BinaryName); err != nil {
				log.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		stats, err := buildStats(cfg)
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Invalid stats backend", err)
			return err
		}
		pingCtx, cancelPing := context.WithTimeout(cmd.Context(), 2*time.Second)
		err = stats.Ping(pingCtx)
		cancelPing()
		if err != nil {
			// Stats are best effort; admission keeps working without them.
			log.Warn("Stats backend unreachable", zap.String("backend", cfg.Stats.Backend), zap.Error(err))
		}

		controller := buildController(cfg, stats)
		aggregator := buildAggregator(cfg)

		log.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Duration("window", controller.Window()),
			zap.String("resolver", cfg.DNSBL.Resolver),
			zap.Int("lists", len(cfg.DNSBL.Lists)),
			zap.String("stats_backend", cfg.Stats.Backend))

		handlers.SetAppIdentity(identity)

		srv := server.New(server.Config{
			Host:              cfg.Server.Host,
			Port:              cfg.Server.Port,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
			TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		}, server.Dependencies{
			Admission: controller,
			Checker:   aggregator,
			Lists:     cfg.DNSBL.Lists,
			Limits:    cfg.RateLimits,
			Stats:     stats.Memory,
			Version:   versionInfo.Version,
		})

		sweepCtx, cancelSweep := context.WithCancel(context.Background())
		controller.Start(sweepCtx)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}

		// LIFO: registered first, executed last.
		signals.OnShutdown(func(ctx context.Context) error {
			log.Info("Flushing logger...")
			if err := log.Sync(); err != nil {
				log.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			cancelSweep()
			controller.Stop()
			if err := stats.Close(); err != nil {
				log.Warn("Failed to close stats backend", zap.Error(err))
			}
			log.Info("Admission controller stopped")
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			log.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			log.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			log.Info("Received SIGHUP: re-validating configuration")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					log.Info("No config file found - using defaults and environment variables")
					return nil
				}
				log.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapInvalidInput(ctx, err, "config reload failed")
			}

			next, err := config.Load(viper.GetViper())
			if err != nil {
				log.Error("Reloaded configuration is invalid", zap.Error(err))
				return errwrap.WrapInvalidInput(ctx, err, "config reload failed")
			}
			metrics.SetListsConfigured(len(next.DNSBL.Lists))

			// Listener, lists and limits are bound at startup.
			log.Info("Configuration is valid; restart to apply changes",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Int("lists", len(next.DNSBL.Lists)))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			log.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			log.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				log.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			cancelSweep()
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
