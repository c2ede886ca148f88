package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourceplane/apphost/internal/render"
)

var graphCmd = &cobra.Command{
	Use:   "graph [resource]",
	Short: "Show the resource graph",
	Long:  "Show resources grouped by environment with their wait-for edges and config entries. Use 'apphost graph <name>' for one resource's dependencies.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showGraph(args)
	},
}

func registerGraphCommand(root *cobra.Command) {
	root.AddCommand(graphCmd)

	graphCmd.Flags().StringSliceVar(&onlyPatterns, "only", nil, "Show only matching resources and their dependencies (glob patterns)")
}

func showGraph(args []string) error {
	lt, err := loadTopology()
	if err != nil {
		return err
	}

	viewer := render.NewTopologyViewer(lt.graph)
	if len(args) > 0 {
		if _, ok := lt.graph.Resource(args[0]); !ok {
			return usageError("resource not found: %s", args[0])
		}
		fmt.Fprintln(printer.Out(), "\n"+viewer.ViewResource(args[0]))
		return nil
	}

	if len(onlyPatterns) > 0 {
		names, err := lt.selection(onlyPatterns)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(printer.Out(), "\n"+viewer.ViewResource(name))
		}
		return nil
	}

	fmt.Fprintln(printer.Out(), "\n"+viewer.ViewTree())
	return nil
}
