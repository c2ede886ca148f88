package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sourceplane/apphost/internal/config"
	"github.com/sourceplane/apphost/internal/output"
)

var (
	cfgFile      string
	topologyFile string
	verbose      bool
	quiet        bool
	colorMode    string
	onlyPatterns []string
	showSecrets  bool
	manifestFile string

	cfg     *config.Config
	logger  *slog.Logger
	printer *output.Printer
)

var rootCmd = &cobra.Command{
	Use:   "apphost",
	Short: "App host: topology → resolved service configuration",
	Long: `apphost reads a deployment topology of parameters, compute environments and
resources, resolves every cross-resource endpoint reference and connection
string, and publishes the flat configuration each process is started with.

Example usage:
  apphost validate                    # Check the topology document
  apphost graph                       # Show resources grouped by environment
  apphost publish -o manifest.json    # Resolve and write the manifest
  apphost env web                     # Print web's resolved configuration
  apphost run web -x                  # Start web with its configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .apphost.yaml)")
	rootCmd.PersistentFlags().StringVarP(&topologyFile, "topology", "t", "", "Topology file path (default from config, topology.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "", "color output: auto, always, or never")

	registerPublishCommand(rootCmd)
	registerValidateCommand(rootCmd)
	registerGraphCommand(rootCmd)
	registerResourcesCommand(rootCmd)
	registerEnvCommand(rootCmd)
	registerRunCommand(rootCmd)
}

// initConfig loads configuration and sets up logging and terminal output.
func initConfig() error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return &output.CLIError{
			Summary:    "invalid configuration",
			Detail:     err.Error(),
			Suggestion: "Check .apphost.yaml and APPHOST_* environment variables",
			ExitCode:   output.ExitConfigError,
			Err:        err,
		}
	}

	if topologyFile != "" {
		cfg.Topology.Path = topologyFile
	}
	if colorMode == "" {
		colorMode = cfg.Output.Color
	}
	mode, err := output.ParseColorMode(colorMode)
	if err != nil {
		return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitUsageError, Err: err}
	}
	printer = output.NewPrinter(output.PrinterOptions{
		ColorMode:    mode,
		ConfigColors: cfg.Output.Colors,
		Quiet:        quiet,
	})

	logger = newLogger(cfg.Logging, verbose)
	slog.SetDefault(logger)

	logger.Debug("configuration loaded",
		"config_file", cfg.ConfigFile(),
		"topology", cfg.Topology.Path,
		"secrets_dir", cfg.Topology.SecretsDir,
	)

	return nil
}

func newLogger(lc config.LoggingConfig, verbose bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func usageError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &output.CLIError{Summary: msg, ExitCode: output.ExitUsageError}
}
