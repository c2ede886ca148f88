package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sourceplane/apphost/internal/lifecycle"
	"github.com/sourceplane/apphost/internal/render"
)

var publishOutput string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Resolve the topology and write the manifest",
	Long: `Resolve every endpoint reference, parameter and connection string in the
topology and write the resulting per-resource configuration as a manifest.
Nothing is written when any resource fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTopology(cmd)
	},
}

func registerPublishCommand(root *cobra.Command) {
	root.AddCommand(publishCmd)

	publishCmd.Flags().StringVarP(&publishOutput, "output", "o", "", "Output manifest file path (json/yaml by extension; default from config)")
	publishCmd.Flags().StringSliceVar(&onlyPatterns, "only", nil, "Publish only matching resources and their dependencies (glob patterns)")
	publishCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Write secret values to the manifest instead of redacting them")
}

func publishTopology(cmd *cobra.Command) error {
	lt, err := loadTopology()
	if err != nil {
		return err
	}

	resources, err := lt.selection(onlyPatterns)
	if err != nil {
		return err
	}

	manifest, result, err := lt.publish(cmd.Context(), publishOptions{
		resources:   resources,
		showSecrets: showSecrets || cfg.Publish.ShowSecrets,
	})
	if result != nil {
		printStates(result)
	}
	if err != nil {
		return err
	}

	renderer := render.NewRenderer()
	if verbose {
		printer.Print("\n%s", renderer.Summary(manifest))
	}

	path := publishOutput
	if path == "" {
		path = cfg.Publish.Output
	}
	if path == "" {
		data, err := renderer.RenderJSON(manifest)
		if err != nil {
			return fmt.Errorf("failed to render manifest: %w", err)
		}
		fmt.Fprintln(printer.Out(), string(data))
		return nil
	}

	if err := renderer.WriteManifest(manifest, path); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	printer.Success("Published %d resources", len(manifest.Resources))
	printer.Success("Saved to: %s", path)
	if manifest.Metadata.Redacted {
		printer.Info("Secret values are redacted; use --show-secrets to include them")
	}
	return nil
}

func printStates(result *lifecycle.Result) {
	if printer.IsQuiet() {
		return
	}
	printer.Header("Resources")
	table := printer.Table([]string{"Resource", "Environment", "State", "Error"})
	for _, name := range result.Order {
		res, ok := result.Resource(name)
		if !ok {
			continue
		}
		errText := ""
		if res.Err != nil && res.RootCause {
			errText = res.Err.Error()
		} else if res.Err != nil {
			errText = "upstream failed"
		}
		table.AddRow(name, dash(res.Environment), printer.StatusBadge(strings.ToLower(res.State.String())), errText)
	}
	if err := table.Render(); err != nil {
		logger.Warn("failed to render table", "error", err)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
