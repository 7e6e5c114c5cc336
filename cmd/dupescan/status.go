package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dupescan/dupescan/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collection summary",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== dupescan status ==="))

		items, err := eng.Items(ctx, types.Scope{})
		if err != nil {
			fatal(err)
		}
		relations, err := eng.Relations(ctx)
		if err != nil {
			fatal(err)
		}
		clusters, err := eng.Clusters(ctx)
		if err != nil {
			fatal(err)
		}
		roots, err := eng.Roots(ctx)
		if err != nil {
			fatal(err)
		}

		byKind := make(map[types.RelationKind]int)
		for _, rel := range relations {
			byKind[rel.Kind]++
		}

		fmt.Printf("Items:     %d\n", len(items))
		fmt.Printf("Relations: %d\n", len(relations))
		for _, kind := range []types.RelationKind{
			types.KindNewMatch,
			types.KindNotDuplicate,
			types.KindNearDuplicate,
			types.KindSimilar,
			types.KindSameSet,
		} {
			if n := byKind[kind]; n > 0 {
				fmt.Printf("  %-15s %d\n", string(kind), n)
			}
		}
		fmt.Printf("Clusters:  %d\n", len(clusters))
		fmt.Printf("Roots:     %d\n", len(roots))

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n", gray("database: "+cfg.DatabasePath))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
