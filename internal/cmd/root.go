package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/iplens/iplens/internal/appid"
	"github.com/iplens/iplens/internal/config"
	"github.com/iplens/iplens/internal/observability"
)

var (
	cfgFile string
	verbose bool

	appIdentity *appidentity.Identity

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity (only valid after initConfig)
func GetAppIdentity() *appidentity.Identity {
	if appIdentity == nil {
		return appid.Default()
	}
	return appIdentity
}

var rootCmd = &cobra.Command{
	Use:   filepath.Base(os.Args[0]),
	Short: appid.Description,
	Long: appid.BinaryName + ` - ` + appid.Description + `

Check IP addresses against DNS blacklists from the command line, or run the
rate-limited HTTP service with "serve".`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Config loading must not emit metrics to stdout; serve installs the
	// real telemetry system later.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	if identity, err := appid.Get(context.Background()); err == nil && identity != nil {
		appIdentity = identity
		if identity.BinaryName != "" {
			rootCmd.Use = identity.BinaryName
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/iplens/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity", err)
	}
	appIdentity = identity

	observability.InitCLILogger(identity.BinaryName, verbose)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if dir := gfconfig.GetAppConfigDir(identity.ConfigName); dir != "" {
			viper.AddConfigPath(dir)
		}
		viper.AddConfigPath("./config")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			observability.CLILogger.Warn("Error reading config file", zap.Error(err))
		} else if !readHomeConfig(identity.ConfigName) {
			observability.CLILogger.Debug("No config file found, using defaults and environment variables")
		}
	} else {
		observability.CLILogger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}

	config.SetDefaults(viper.GetViper())
}

// readHomeConfig falls back to $HOME/.<name>.yaml.
func readHomeConfig(name string) bool {
	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	path := filepath.Join(home, fmt.Sprintf(".%s.yaml", name))
	if _, err := os.Stat(path); err != nil {
		return false
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		observability.CLILogger.Warn("Error reading config file", zap.String("path", path), zap.Error(err))
		return false
	}
	observability.CLILogger.Debug("Using config file", zap.String("path", path))
	return true
}
