package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dupescan/dupescan/internal/types"
)

// scanRecord is one JSONL line produced by the fingerprinting collaborator.
type scanRecord struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
	SourceRoot  string `json:"source_root"`
}

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Ingest fingerprinted items from a JSONL file",
	Long: `Read fingerprinted items from a JSONL file (or stdin when the file is
"-" or omitted) and add them to the store. Each line holds an object with
"fingerprint" (hex), an optional stable "id", and an optional
"source_root". Items without an id are assigned one.

Example:
  $ dupescan scan fingerprints.jsonl
  ✓ Ingested 1204 items (2 lines skipped)`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var in io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				fatal(err)
			}
			defer f.Close()
			in = f
		}

		items, skipped, err := readScanRecords(in)
		if err != nil {
			fatal(err)
		}
		if len(items) == 0 {
			fmt.Println(color.YellowString("No items to ingest"))
			return
		}

		ids, err := eng.Ingest(context.Background(), items)
		if err != nil {
			fatal(err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		if skipped > 0 {
			fmt.Printf("%s Ingested %d items (%d lines skipped)\n", green("✓"), len(ids), skipped)
		} else {
			fmt.Printf("%s Ingested %d items\n", green("✓"), len(ids))
		}
	},
}

// readScanRecords parses JSONL input. Blank lines are skipped; lines that
// fail to parse are counted and reported but do not abort the ingest.
func readScanRecords(in io.Reader) ([]types.Item, int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var items []types.Item
	skipped := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec scanRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", lineNo, err)
			skipped++
			continue
		}
		fp, err := types.ParseFingerprint(rec.Fingerprint)
		if err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", lineNo, err)
			skipped++
			continue
		}
		items = append(items, types.Item{
			ID:          rec.ID,
			Fingerprint: fp,
			SourceRoot:  rec.SourceRoot,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read input: %w", err)
	}
	return items, skipped, nil
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
