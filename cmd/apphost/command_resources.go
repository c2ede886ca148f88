package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/apphost/internal/expand"
)

var (
	outputFormat string
	longFormat   bool
)

var resourcesCmd = &cobra.Command{
	Use:     "resources [resource-name]",
	Aliases: []string{"resource"},
	Short:   "List and analyze resources",
	Long:    "List all resources with their environment, endpoints and dependencies. Use 'apphost resources <name>' for details.",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listResources(args)
	},
}

func registerResourcesCommand(root *cobra.Command) {
	root.AddCommand(resourcesCmd)

	resourcesCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Output format (table/json/yaml; default from config)")
	resourcesCmd.Flags().BoolVarP(&longFormat, "long", "l", false, "Show detailed information")
}

func listResources(args []string) error {
	lt, err := loadTopology()
	if err != nil {
		return err
	}

	analyzer := expand.NewResourceAnalyzer(lt.graph)

	var resources []*expand.ResourceSummary
	if len(args) > 0 {
		res, ok := analyzer.GetResourceByName(args[0])
		if !ok {
			return usageError("resource not found: %s", args[0])
		}
		resources = []*expand.ResourceSummary{res}
	} else {
		resources = analyzer.ListAll()
	}

	format := outputFormat
	if format == "" {
		format = cfg.Output.Format
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(resources, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render resources: %w", err)
		}
		fmt.Fprintln(printer.Out(), string(data))
		return nil
	case "yaml":
		data, err := yaml.Marshal(resources)
		if err != nil {
			return fmt.Errorf("failed to render resources: %w", err)
		}
		fmt.Fprint(printer.Out(), string(data))
		return nil
	case "table":
	default:
		return usageError("unknown format %q (must be table, json, or yaml)", format)
	}

	if len(resources) == 0 {
		printer.Print("No resources found")
		return nil
	}

	if len(args) > 0 || longFormat {
		for _, res := range resources {
			printResourceDetails(res)
		}
		return nil
	}

	groups := analyzer.ByEnvironment()
	names := append(lt.environmentNames(), "")
	for _, env := range names {
		members := groups[env]
		if len(members) == 0 {
			continue
		}
		title := env
		if title == "" {
			title = "(no environment)"
		} else if e, ok := lt.graph.Environment(env); ok {
			title = fmt.Sprintf("%s [%s]", env, e.Kind)
		}
		printer.Header(title)

		table := printer.Table([]string{"Name", "Kind", "Endpoints", "Waits For", "Needed By"})
		for _, res := range members {
			table.AddRow(res.Name, res.Kind, dash(strings.Join(res.Endpoints, ",")),
				dash(strings.Join(res.Dependencies, ",")), dash(strings.Join(res.Dependents, ",")))
		}
		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}

	printer.Print("\nRun 'apphost resources <name>' for detailed information")
	return nil
}

func printResourceDetails(res *expand.ResourceSummary) {
	printer.Print("\n[Resource] %s", printer.Bold(res.Name))
	printer.Print("  Kind:        %s", res.Kind)
	if res.Environment != "" {
		printer.Print("  Environment: %s (%s)", res.Environment, res.EnvironmentKind)
	} else {
		printer.Print("  Environment: %s", printer.Dim("none"))
	}
	if len(res.Endpoints) > 0 {
		printer.Print("  Endpoints:   %s", strings.Join(res.Endpoints, ", "))
	}
	if len(res.Dependencies) > 0 {
		printer.Print("  Waits for:   %s", strings.Join(res.Dependencies, ", "))
	}
	if len(res.Dependents) > 0 {
		printer.Print("  Needed by:   %s", strings.Join(res.Dependents, ", "))
	}
	if res.HasConnection {
		printer.Print("  Publishes a connection string")
	}
	if len(res.ConfigKeys) > 0 {
		printer.Print("  Config (%d):", len(res.ConfigKeys))
		for _, key := range res.ConfigKeys {
			printer.Print("    %s", key)
		}
	}
}
