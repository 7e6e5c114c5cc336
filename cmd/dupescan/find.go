package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dupescan/dupescan/internal/engine"
	"github.com/dupescan/dupescan/internal/types"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Run a discovery pass and show duplicate pairs",
	Long: `Compare every in-scope item against the collection and report pairs
within the distance threshold. Pairs you have already reviewed stay
hidden unless --all is given, and they always keep your decision.

Example:
  $ dupescan find --threshold 5
  photo-0042 <-> photo-0907  distance 3  new match`,
	Run: func(cmd *cobra.Command, args []string) {
		threshold, _ := cmd.Flags().GetInt("threshold")
		roots, _ := cmd.Flags().GetStringSlice("root")
		includeAll, _ := cmd.Flags().GetBool("all")

		result, err := eng.FindDuplicates(context.Background(), engine.FindOptions{
			Threshold:        threshold,
			Scope:            types.Scope{Roots: roots},
			IncludeAnnotated: includeAll,
			Progress: func(done, total int) {
				fmt.Fprintf(os.Stderr, "\rcomparing %d/%d", done, total)
				if done == total {
					fmt.Fprint(os.Stderr, "\r\033[K")
				}
			},
		})
		if err != nil {
			fatal(err)
		}

		printRelations(result.Relations)

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n", gray(fmt.Sprintf("%d items, %d candidate pairs, %d new",
			result.Stats.Items, result.Stats.Candidates, result.Stats.Inserted)))

		if len(result.Warnings) > 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			for _, w := range result.Warnings {
				fmt.Fprintf(os.Stderr, "%s %s\n", yellow("warning:"), w.String())
			}
		}
	},
}

func printRelations(relations []types.Relation) {
	if len(relations) == 0 {
		fmt.Println(color.New(color.FgHiBlack).Sprint("No pairs found"))
		return
	}

	kindColors := map[types.RelationKind]*color.Color{
		types.KindNewMatch:      color.New(color.FgGreen),
		types.KindNotDuplicate:  color.New(color.FgHiBlack),
		types.KindNearDuplicate: color.New(color.FgRed),
		types.KindSimilar:       color.New(color.FgYellow),
		types.KindSameSet:       color.New(color.FgCyan),
	}
	for _, rel := range relations {
		c, ok := kindColors[rel.Kind]
		if !ok {
			c = color.New(color.Reset)
		}
		fmt.Printf("%s  distance %d  %s\n", rel.Pair, rel.Distance, c.Sprint(string(rel.Kind)))
	}
}

func init() {
	findCmd.Flags().IntP("threshold", "t", 0, "Maximum Hamming distance (0 uses the configured default)")
	findCmd.Flags().StringSlice("root", nil, "Restrict to items from these source roots (repeatable)")
	findCmd.Flags().Bool("all", false, "Include already-reviewed pairs")
	rootCmd.AddCommand(findCmd)
}
