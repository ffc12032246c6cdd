package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ply-labs/karpov/internal/batch"
	"github.com/ply-labs/karpov/internal/cod"
	"github.com/ply-labs/karpov/internal/store"
)

var (
	inputDir       string
	singleFile     string
	dryRun         bool
	minMoves       int
	saveEvery      int
	variantName    string
	thresholdsPath string
	statePath      string
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "karpov-backfill",
	Short: "Replay exported game metrics through the move classifier",
	Long: `karpov-backfill reads .jsonl exports of per-move metrics and runs them
through the control-over-dynamics classifier exactly as the live pipeline
would have, threading cooldown state per game and side in ply order.

Progress is tracked in ~/.karpov/backfill-state.json so interrupted runs
resume where they left off. Use --dry-run to tag without database writes.`,
	RunE: runBackfill,
}

func init() {
	rootCmd.Flags().StringVar(&inputDir, "input", "", "Directory of .jsonl game exports (walked recursively)")
	rootCmd.Flags().StringVar(&singleFile, "file", "", "Process a single export file instead of a directory")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify without writing to the database")
	rootCmd.Flags().IntVar(&minMoves, "min-moves", 1, "Skip files with fewer usable moves")
	rootCmd.Flags().IntVar(&saveEvery, "save-every", 10, "Save progress state every N files")
	rootCmd.Flags().StringVar(&variantName, "variant", "legacy", "Engine variant (legacy or refined)")
	rootCmd.Flags().StringVar(&thresholdsPath, "thresholds", "", "Thresholds YAML path (built-in defaults when empty)")
	rootCmd.Flags().StringVar(&statePath, "state", "", "Progress file path (default ~/.karpov/backfill-state.json)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	if inputDir == "" && singleFile == "" {
		return fmt.Errorf("either --input or --file is required")
	}

	logger := newLogger(logLevel)

	thresholds, err := cod.LoadThresholds(thresholdsPath)
	if err != nil {
		return fmt.Errorf("load thresholds: %w", err)
	}
	variant, err := cod.ParseVariant(variantName)
	if err != nil {
		return err
	}
	engine, err := cod.New(variant, thresholds)
	if err != nil {
		return err
	}
	logger.Info("engine ready", "variant", variant)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var writer batch.Writer
	if !dryRun {
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			return fmt.Errorf("DATABASE_URL is required unless --dry-run is set")
		}
		db, err := store.New(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		writer = db
		logger.Info("database connected")
	}

	runner := batch.NewRunner(batch.Config{
		InputDir:   inputDir,
		SingleFile: singleFile,
		DryRun:     dryRun,
		MinMoves:   minMoves,
		SaveEvery:  saveEvery,
		StatePath:  statePath,
	}, engine, writer, logger)

	return runner.Run(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
