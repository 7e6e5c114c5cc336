package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Manage registered source locations",
	Run: func(cmd *cobra.Command, args []string) {
		roots, err := eng.Roots(context.Background())
		if err != nil {
			fatal(err)
		}
		if len(roots) == 0 {
			fmt.Println(color.New(color.FgHiBlack).Sprint("No registered roots"))
			return
		}
		for _, r := range roots {
			fmt.Println(r)
		}
	},
}

var rootsAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register a source location",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := eng.AddRoot(context.Background(), args[0]); err != nil {
			fatal(err)
		}
		fmt.Printf("%s registered %s\n", color.GreenString("✓"), args[0])
	},
}

var rootsRmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Unregister a source location",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := eng.RemoveRoot(context.Background(), args[0]); err != nil {
			fatal(err)
		}
		fmt.Printf("%s unregistered %s\n", color.GreenString("✓"), args[0])
	},
}

func init() {
	rootsCmd.AddCommand(rootsAddCmd)
	rootsCmd.AddCommand(rootsRmCmd)
	rootCmd.AddCommand(rootsCmd)
}
