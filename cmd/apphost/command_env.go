package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourceplane/apphost/internal/loader"
	"github.com/sourceplane/apphost/internal/model"
	"github.com/sourceplane/apphost/internal/output"
	"github.com/sourceplane/apphost/internal/render"
)

var envCmd = &cobra.Command{
	Use:   "env <resource>",
	Short: "Print a resource's resolved configuration as dotenv",
	Long: `Resolve the resource and everything it depends on, then print its flat
configuration in dotenv form. Use --manifest to read a published manifest
instead of resolving the topology again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printEnv(cmd, args[0])
	},
}

func registerEnvCommand(root *cobra.Command) {
	root.AddCommand(envCmd)

	envCmd.Flags().StringVarP(&manifestFile, "manifest", "m", "", "Read from a published manifest instead of the topology")
	envCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secret values instead of redacting them")
}

func printEnv(cmd *cobra.Command, name string) error {
	// stdout carries the dotenv document only
	if !verbose {
		printer = output.NewPrinter(output.PrinterOptions{ColorMode: output.ColorNever, Quiet: true})
	}

	manifest, err := envManifest(cmd, name)
	if err != nil {
		return err
	}

	res, ok := manifest.Resource(name)
	if !ok {
		return usageError("resource not found: %s", name)
	}
	fmt.Fprint(printer.Out(), string(render.NewRenderer().RenderDotEnv(res)))
	return nil
}

func envManifest(cmd *cobra.Command, name string) (*model.Manifest, error) {
	if manifestFile != "" {
		manifest, err := loader.LoadManifest(manifestFile)
		if err != nil {
			return nil, &output.CLIError{Summary: "invalid manifest", Detail: err.Error(), ExitCode: output.ExitTopology, Err: err}
		}
		return manifest, nil
	}

	lt, err := loadTopology()
	if err != nil {
		return nil, err
	}
	if _, ok := lt.graph.Resource(name); !ok {
		return nil, usageError("resource not found: %s", name)
	}
	resources, err := lt.selection([]string{name})
	if err != nil {
		return nil, err
	}

	manifest, _, err := lt.publish(cmd.Context(), publishOptions{
		resources:   resources,
		showSecrets: showSecrets || cfg.Publish.ShowSecrets,
	})
	return manifest, err
}
