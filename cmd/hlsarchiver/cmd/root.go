// Package cmd implements the CLI commands for hlsarchiver.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jmylchreest/hlsarchiver/internal/config"
	"github.com/jmylchreest/hlsarchiver/internal/observability"
	"github.com/jmylchreest/hlsarchiver/internal/version"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	logLevel    string
	logFormat   string
	showLicense bool
	appConfig   *config.Config
	appLogger   *slog.Logger
)

const licenseNotice = `hlsarchiver

This program records and replays HLS broadcasts. It is provided as-is,
with no warranty of any kind. See the project repository for full
license terms.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "hlsarchiver",
	Short:   "Record and replay HLS broadcasts",
	Version: version.Short(),
	Long: `hlsarchiver records HLS (HTTP Live Streaming) broadcasts, both VOD and
live, to a local directory, and replays them through a local HTTP server
that reproduces the original timing of the broadcast.`,
	Run: func(c *cobra.Command, _ []string) {
		_ = c.Help()
	},
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if showLicense {
			fmt.Println(licenseNotice)
			os.Exit(0)
		}
		return initApp()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/hlsarchiver, $HOME/.hlsarchiver)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format override (text, json)")
	rootCmd.PersistentFlags().BoolVar(&showLicense, "license", false, "print license information and exit")
}

// initApp loads configuration and builds the shared logger, applying
// any --log-level/--log-format overrides on top of the loaded config.
func initApp() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	appConfig = cfg
	appLogger = observability.NewLogger(cfg.Logging)
	slog.SetDefault(appLogger)
	return nil
}
