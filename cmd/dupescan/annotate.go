package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dupescan/dupescan/internal/types"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <id1> <id2> <kind>",
	Short: "Record a review decision for a discovered pair",
	Long: `Set the relationship kind for a pair the scanner has discovered.
Valid kinds: not_duplicate, near_duplicate, similar, same_set, new_match.
Setting new_match explicitly puts the pair back in the review queue.

Example:
  $ dupescan annotate photo-0042 photo-0907 near_duplicate
  ✓ photo-0042 <-> photo-0907 marked near_duplicate`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		kind := types.RelationKind(strings.ToLower(args[2]))
		if !kind.IsValid() {
			fatal(fmt.Errorf("unknown kind %q (valid: %s)", args[2], strings.Join(kindNames(), ", ")))
		}

		if err := eng.Annotate(context.Background(), args[0], args[1], kind); err != nil {
			fatal(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s marked %s\n", green("✓"), types.NewPair(args[0], args[1]), kind)
	},
}

func kindNames() []string {
	return []string{
		string(types.KindNotDuplicate),
		string(types.KindNearDuplicate),
		string(types.KindSimilar),
		string(types.KindSameSet),
		string(types.KindNewMatch),
	}
}

func init() {
	rootCmd.AddCommand(annotateCmd)
}
