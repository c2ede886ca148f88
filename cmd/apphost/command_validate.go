package main

import (
	"github.com/spf13/cobra"

	"github.com/sourceplane/apphost/internal/loader"
	"github.com/sourceplane/apphost/internal/output"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the topology (or a manifest)",
	Long:  "Check the topology document against its schema, normalize it and build the resource graph, rejecting unknown names and wait-for cycles.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if manifestFile != "" {
			return validateManifest()
		}
		return validateTopology()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&manifestFile, "manifest", "m", "", "Validate a published manifest instead of the topology")
}

func validateTopology() error {
	lt, err := loadTopology()
	if err != nil {
		return err
	}

	printer.Success("Topology is valid")
	printer.Success("%d resources in %d environments, %d parameters",
		len(lt.graph.Names()), len(lt.graph.Environments()), len(lt.graph.Parameters()))
	return nil
}

func validateManifest() error {
	printer.Step("Validating manifest %s...", manifestFile)
	manifest, err := loader.LoadManifest(manifestFile)
	if err != nil {
		return &output.CLIError{
			Summary:  "invalid manifest",
			Detail:   err.Error(),
			ExitCode: output.ExitTopology,
			Err:      err,
		}
	}

	printer.Success("Manifest is valid (run %s, %d resources)", manifest.Metadata.RunID, len(manifest.Resources))
	return nil
}
