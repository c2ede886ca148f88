package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sourceplane/apphost/internal/loader"
	"github.com/sourceplane/apphost/internal/output"
	"github.com/sourceplane/apphost/internal/runner"
)

var (
	runExecute bool
	runWorkDir string
)

var runCmd = &cobra.Command{
	Use:   "run <resource> [-- command...]",
	Short: "Start a resource with its published configuration",
	Long: `Start the resource's declared command, or the command given after --, with
the resource's resolved configuration from a published manifest added to the
environment. Commands are only printed unless --execute is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResource(cmd, args[0], args[1:])
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&manifestFile, "manifest", "m", "", "Path to manifest file (json or yaml; default from config, manifest.json)")
	runCmd.Flags().BoolVarP(&runExecute, "execute", "x", false, "Actually execute the command (default is dry-run)")
	runCmd.Flags().StringVar(&runWorkDir, "workdir", ".", "Working directory for the command")
}

func runResource(cmd *cobra.Command, name string, argv []string) error {
	path := manifestFile
	if path == "" {
		path = cfg.Publish.Output
	}
	if path == "" {
		path = "manifest.json"
	}

	manifest, err := loader.LoadManifest(path)
	if err != nil {
		return &output.CLIError{
			Summary:    "failed to load manifest",
			Detail:     err.Error(),
			Suggestion: "Run 'apphost publish -o " + path + " --show-secrets' first",
			ExitCode:   output.ExitTopology,
			Err:        err,
		}
	}

	dryRun := !runExecute
	if dryRun {
		printer.Step("Dry-run mode enabled. Use --execute to run the command.")
	}

	r := runner.NewRunner(runWorkDir, os.Stdout, os.Stderr, dryRun)
	if err := r.Run(cmd.Context(), manifest, name, argv); err != nil {
		return err
	}

	if dryRun {
		printer.Success("Dry-run complete")
	} else {
		printer.Success("Run complete")
	}
	return nil
}
