package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dupescan/dupescan/internal/types"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Show duplicate clusters",
	Long: `List persisted clusters. With --project, first re-derive clusters from
the current relations: items you confirmed as near duplicates or members
of the same set group together, items sharing an identical fingerprint
group together, and pairs you marked not_duplicate are never grouped.
Cluster ids are sticky across projections.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		project, _ := cmd.Flags().GetBool("project")
		roots, _ := cmd.Flags().GetStringSlice("root")

		if project {
			if _, err := eng.ProjectClusters(ctx, types.Scope{Roots: roots}); err != nil {
				fatal(err)
			}
		}

		clusters, err := eng.Clusters(ctx)
		if err != nil {
			fatal(err)
		}
		if len(clusters) == 0 {
			fmt.Println(color.New(color.FgHiBlack).Sprint("No clusters"))
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		for _, c := range clusters {
			name := c.Name
			if name == "" {
				name = fmt.Sprintf("cluster %d", c.ID)
			}
			fmt.Printf("%s (%d members)\n", cyan(name), len(c.Members))
			fmt.Printf("  %s\n", strings.Join(c.Members, ", "))
		}
	},
}

func init() {
	clustersCmd.Flags().Bool("project", false, "Re-derive clusters from current relations first")
	clustersCmd.Flags().StringSlice("root", nil, "Restrict projection to these source roots (repeatable)")
	rootCmd.AddCommand(clustersCmd)
}
