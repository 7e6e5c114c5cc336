package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dupescan/dupescan/internal/config"
	"github.com/dupescan/dupescan/internal/engine"
	"github.com/dupescan/dupescan/internal/storage/sqlite"
)

var (
	flagDir     string
	flagDB      string
	flagVerbose bool

	eng *engine.Engine
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dupescan",
	Short: "Find and manage near-duplicate images by perceptual fingerprint",
	Long: `dupescan maintains a durable record of duplicate relationships in an
image collection. Fingerprinted items go in, near-duplicate pairs come
out, and your review decisions (not a duplicate, near duplicate, similar,
same set) are remembered across every future scan.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		cfg, err = config.LoadFromDir(flagDir)
		if err != nil {
			return err
		}
		if flagDB != "" {
			cfg.DatabasePath = flagDB
		}

		store, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open store at %s: %w", cfg.DatabasePath, err)
		}
		eng, err = engine.New(store, cfg)
		if err != nil {
			_ = store.Close()
			return err
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if eng != nil {
			return eng.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "C", ".", "Collection directory (holds .dupescan/)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Override database path")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
