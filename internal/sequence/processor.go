package sequence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ply-labs/karpov/internal/bus"
	"github.com/ply-labs/karpov/internal/cod"
	"github.com/ply-labs/karpov/internal/report"
	"github.com/ply-labs/karpov/internal/store"
)

// ClassificationStore is the slice of the store the pipeline needs. A nil
// store is allowed: the service then classifies and publishes without
// persistence.
type ClassificationStore interface {
	WriteClassification(ctx context.Context, gameID, side string, ply int, san string, res cod.Result) (uuid.UUID, error)
	GameSubtypeTotals(ctx context.Context, gameID string) ([]store.SubtypeCount, error)
}

// Publisher is the slice of the bus client the pipeline needs.
type Publisher interface {
	PublishMoveTagged(evt bus.MoveTaggedEvent) error
}

// Processor drives the move pipeline: it threads cooldown state per game and
// side through the engine, enforces ply order, persists confirmed
// classifications, and emits tagged-move events.
type Processor struct {
	engine  cod.Engine
	store   ClassificationStore
	bus     Publisher
	reports *report.Publisher
	logger  *slog.Logger

	mu    sync.Mutex
	games map[string]*gameSequence
	stats Stats
}

// gameSequence is the in-flight state for one game, keyed by side.
type gameSequence struct {
	states  map[string]cod.CooldownState
	lastPly map[string]int
}

// Stats are the running pipeline counters exposed on the status endpoint.
type Stats struct {
	ActiveGames  int   `json:"active_games"`
	Processed    int64 `json:"processed"`
	Detected     int64 `json:"detected"`
	GateRejected int64 `json:"gate_rejected"`
	OutOfOrder   int64 `json:"out_of_order"`
	GamesClosed  int64 `json:"games_closed"`
}

func New(engine cod.Engine, s ClassificationStore, b Publisher, reports *report.Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		engine:  engine,
		store:   s,
		bus:     b,
		reports: reports,
		logger:  logger,
		games:   make(map[string]*gameSequence),
	}
}

// HandleMoveMetrics is the NATS handler for chess.analysis.move.metrics.
func (p *Processor) HandleMoveMetrics(subject string, data []byte) {
	ctx := context.Background()

	var evt bus.MoveMetricsEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse move metrics event", "error", err)
		return
	}
	if evt.GameID == "" || evt.Metrics.Ply <= 0 {
		p.logger.Error("move metrics event missing game_id or ply", "game_id", evt.GameID, "ply", evt.Metrics.Ply)
		return
	}
	if evt.Side != "white" && evt.Side != "black" {
		p.logger.Error("move metrics event has invalid side", "game_id", evt.GameID, "side", evt.Side)
		return
	}

	// Classification is pure in-memory work, so the lock spans the order
	// check, the engine call, and the state advance as one unit.
	p.mu.Lock()
	seq, ok := p.games[evt.GameID]
	if !ok {
		seq = &gameSequence{
			states:  make(map[string]cod.CooldownState),
			lastPly: make(map[string]int),
		}
		p.games[evt.GameID] = seq
	}
	if last := seq.lastPly[evt.Side]; evt.Metrics.Ply <= last && last != 0 {
		p.stats.OutOfOrder++
		p.mu.Unlock()
		p.logger.Warn("dropping out-of-order move",
			"game_id", evt.GameID,
			"side", evt.Side,
			"ply", evt.Metrics.Ply,
			"last_ply", last,
		)
		return
	}

	res, next := p.engine.Classify(evt.Metrics, seq.states[evt.Side])
	seq.states[evt.Side] = next
	seq.lastPly[evt.Side] = evt.Metrics.Ply
	p.stats.Processed++
	if res.Detected() {
		p.stats.Detected++
	}
	if !res.GatesPassed["tactical_gate"] {
		p.stats.GateRejected++
	}
	p.mu.Unlock()

	if !res.Detected() {
		p.logger.Debug("no subtype",
			"game_id", evt.GameID,
			"side", evt.Side,
			"ply", evt.Metrics.Ply,
			"failed_gates", res.FailedGates,
		)
		return
	}

	var classificationID string
	if p.store != nil {
		id, err := p.store.WriteClassification(ctx, evt.GameID, evt.Side, evt.Metrics.Ply, evt.San, res)
		if err != nil {
			p.logger.Error("failed to persist classification",
				"game_id", evt.GameID,
				"ply", evt.Metrics.Ply,
				"error", err,
			)
		} else {
			classificationID = id.String()
		}
	}

	tagged := bus.MoveTaggedEvent{
		ClassificationID:  classificationID,
		GameID:            evt.GameID,
		Side:              evt.Side,
		Ply:               evt.Metrics.Ply,
		San:               evt.San,
		Variant:           res.Variant,
		Subtype:           res.Selected.Name,
		Score:             res.Selected.Score,
		Why:               res.Selected.Why,
		Tags:              res.Tags,
		Suppressed:        res.Suppressed,
		CooldownRemaining: res.CooldownRemaining,
	}
	if err := p.bus.PublishMoveTagged(tagged); err != nil {
		p.logger.Error("failed to publish tagged move", "game_id", evt.GameID, "error", err)
	}

	p.logger.Info("move tagged",
		"game_id", evt.GameID,
		"side", evt.Side,
		"ply", evt.Metrics.Ply,
		"subtype", res.Selected.Name.String(),
		"score", res.Selected.Score,
	)
}

// HandleGameCompleted is the NATS handler for chess.analysis.game.completed.
// It drops the in-flight sequence state and emits the per-game report.
func (p *Processor) HandleGameCompleted(subject string, data []byte) {
	ctx := context.Background()

	var evt bus.GameCompletedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse game completed event", "error", err)
		return
	}
	if evt.GameID == "" {
		p.logger.Error("game completed event missing game_id")
		return
	}

	p.mu.Lock()
	_, known := p.games[evt.GameID]
	delete(p.games, evt.GameID)
	p.stats.GamesClosed++
	p.mu.Unlock()

	if !known {
		p.logger.Debug("completed game had no tracked moves", "game_id", evt.GameID)
	}

	if p.store == nil || p.reports == nil {
		return
	}
	counts, err := p.store.GameSubtypeTotals(ctx, evt.GameID)
	if err != nil {
		p.logger.Error("failed to aggregate game totals", "game_id", evt.GameID, "error", err)
		return
	}
	rep := report.BuildGameReport(evt.GameID, evt.Result, counts)
	if err := p.reports.PublishGameReport(rep); err != nil {
		p.logger.Error("failed to publish game report", "game_id", evt.GameID, "error", err)
		return
	}

	p.logger.Info("game report published",
		"game_id", evt.GameID,
		"tagged_moves", rep.TaggedMoves,
	)
}

// Status snapshots the pipeline counters.
func (p *Processor) Status() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.stats
	st.ActiveGames = len(p.games)
	return st
}
