package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ply-labs/karpov/internal/cod"
)

// Writer is the slice of the store the backfill needs. It stays nil for
// dry runs and offline tagging.
type Writer interface {
	WriteClassification(ctx context.Context, gameID, side string, ply int, san string, res cod.Result) (uuid.UUID, error)
}

// Config holds the backfill command configuration.
type Config struct {
	InputDir   string
	SingleFile string // process a single file only
	DryRun     bool
	MinMoves   int    // skip games with fewer usable moves
	SaveEvery  int    // save state after this many files
	StatePath  string // progress file, default under the home directory
}

// Runner replays exported game files through the engine, exactly as the
// live pipeline would have seen them.
type Runner struct {
	cfg    Config
	engine cod.Engine
	store  Writer
	logger *slog.Logger
}

// NewRunner creates a backfill runner.
func NewRunner(cfg Config, engine cod.Engine, store Writer, logger *slog.Logger) *Runner {
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = 10
	}
	return &Runner{
		cfg:    cfg,
		engine: engine,
		store:  store,
		logger: logger,
	}
}

// Run executes the backfill.
func (r *Runner) Run(ctx context.Context) error {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}

	var pending []string
	for _, f := range files {
		if !state.IsProcessed(f) {
			pending = append(pending, f)
		}
	}
	state.FilesRemaining = len(pending)

	r.logger.Info("files discovered",
		"total", len(files),
		"pending", len(pending),
	)

	totalMoves := 0
	totalTagged := 0
	perSubtype := make(map[string]int)
	sinceSave := 0

	for _, path := range pending {
		select {
		case <-ctx.Done():
			r.logger.Info("backfill interrupted, saving state")
			_ = state.Save()
			return ctx.Err()
		default:
		}

		records, skipped, err := ReadGameFile(path)
		if err != nil {
			r.logger.Warn("failed to read game file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("read %s: %v", path, err))
			continue
		}
		if skipped > 0 {
			r.logger.Warn("skipped malformed lines", "path", path, "skipped", skipped)
		}
		if len(records) < r.cfg.MinMoves {
			state.MarkProcessed(path)
			state.FilesRemaining--
			continue
		}

		moves, tagged := r.replayFile(ctx, records, state, perSubtype)
		totalMoves += moves
		totalTagged += tagged
		state.MovesProcessed += moves
		state.MovesTagged += tagged

		state.MarkProcessed(path)
		state.FilesRemaining--
		sinceSave++
		if sinceSave >= r.cfg.SaveEvery {
			_ = state.Save()
			sinceSave = 0
		}

		r.logger.Info("file replayed",
			"path", path,
			"moves", moves,
			"tagged", tagged,
			"dry_run", r.cfg.DryRun,
		)
	}

	_ = state.Save()

	r.logger.Info("backfill complete",
		"files_processed", len(pending),
		"moves_processed", totalMoves,
		"moves_tagged", totalTagged,
		"dry_run", r.cfg.DryRun,
	)

	fmt.Printf("\n=== Backfill Summary ===\n")
	fmt.Printf("Files processed: %d\n", len(pending))
	fmt.Printf("Moves processed: %d\n", totalMoves)
	fmt.Printf("Moves tagged: %d\n", totalTagged)
	for _, name := range sortedKeys(perSubtype) {
		fmt.Printf("  %-20s %d\n", name, perSubtype[name])
	}
	fmt.Printf("Errors: %d\n", len(state.Errors))
	if r.cfg.DryRun {
		fmt.Printf("Mode: DRY RUN (no DB writes)\n")
	}
	fmt.Printf("State file: %s\n", state.Path())

	return nil
}

// replayFile classifies every usable move in the file, threading cooldown
// state per game and side in ply order so the outcome matches what the live
// pipeline would have produced.
func (r *Runner) replayFile(ctx context.Context, records []MoveRecord, state *RunState, perSubtype map[string]int) (moves, tagged int) {
	byGame := make(map[string][]MoveRecord)
	for _, rec := range records {
		byGame[rec.GameID] = append(byGame[rec.GameID], rec)
	}
	gameIDs := make([]string, 0, len(byGame))
	for id := range byGame {
		gameIDs = append(gameIDs, id)
	}
	sort.Strings(gameIDs)

	for _, gameID := range gameIDs {
		recs := byGame[gameID]
		// Ascending ply gives each side its own ascending sequence.
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].Metrics.Ply < recs[j].Metrics.Ply
		})

		states := make(map[string]cod.CooldownState)
		lastPly := make(map[string]int)

		for _, rec := range recs {
			if last := lastPly[rec.Side]; rec.Metrics.Ply <= last && last != 0 {
				continue
			}

			res, next := r.engine.Classify(rec.Metrics, states[rec.Side])
			states[rec.Side] = next
			lastPly[rec.Side] = rec.Metrics.Ply
			moves++

			if !res.Detected() {
				continue
			}
			tagged++
			perSubtype[res.Selected.Name.String()]++

			if r.cfg.DryRun || r.store == nil {
				continue
			}
			if _, err := r.store.WriteClassification(ctx, gameID, rec.Side, rec.Metrics.Ply, rec.San, res); err != nil {
				r.logger.Error("persist failed", "game_id", gameID, "ply", rec.Metrics.Ply, "error", err)
				state.AddError(fmt.Sprintf("persist %s ply %d: %v", gameID, rec.Metrics.Ply, err))
			}
		}
	}
	return moves, tagged
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}

	dir := expandHome(r.cfg.InputDir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("input dir not found: %s", dir)
	}

	var files []string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("error walking input dir", "dir", dir, "error", err)
	}
	sort.Strings(files)
	return files, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
