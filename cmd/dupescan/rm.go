package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Remove items and every relation referencing them",
	Long: `Remove items from the store. Each removal atomically deletes the item,
all of its relations, and its cluster memberships; there is no window
where a relation points at a missing item.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		green := color.New(color.FgGreen).SprintFunc()
		for _, id := range args {
			if err := eng.ItemDeleted(ctx, id); err != nil {
				fatal(err)
			}
			fmt.Printf("%s removed %s\n", green("✓"), id)
		}
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify relation integrity",
	Long: `Sweep for relations whose endpoints no longer exist. A healthy store
always reports zero; anything else means a deletion bypassed the atomic
cascade and is reported as an anomaly after cleanup.`,
	Run: func(cmd *cobra.Command, args []string) {
		removed, err := eng.IntegrityCheck(context.Background())
		if err != nil {
			if removed > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(),
					color.RedString("✗ integrity anomaly: removed %d orphaned relation(s)", removed))
			}
			fatal(err)
		}
		fmt.Println(color.GreenString("✓ store is consistent"))
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(checkCmd)
}
