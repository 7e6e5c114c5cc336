// Command dupescan manages a collection of fingerprinted images: it finds
// near-duplicate pairs, records review decisions, and projects clusters.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
