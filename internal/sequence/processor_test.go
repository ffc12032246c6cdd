package sequence

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/ply-labs/karpov/internal/bus"
	"github.com/ply-labs/karpov/internal/cod"
	"github.com/ply-labs/karpov/internal/report"
	"github.com/ply-labs/karpov/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type writeCall struct {
	gameID string
	side   string
	ply    int
	san    string
	res    cod.Result
}

type fakeStore struct {
	writes    []writeCall
	writeErr  error
	totals    []store.SubtypeCount
	totalsErr error
}

func (f *fakeStore) WriteClassification(ctx context.Context, gameID, side string, ply int, san string, res cod.Result) (uuid.UUID, error) {
	if f.writeErr != nil {
		return uuid.Nil, f.writeErr
	}
	f.writes = append(f.writes, writeCall{gameID: gameID, side: side, ply: ply, san: san, res: res})
	return uuid.New(), nil
}

func (f *fakeStore) GameSubtypeTotals(ctx context.Context, gameID string) ([]store.SubtypeCount, error) {
	return f.totals, f.totalsErr
}

type publishedMsg struct {
	subject string
	data    any
}

type fakeBus struct {
	published []publishedMsg
	tagged    []bus.MoveTaggedEvent
	taggedErr error
}

func (f *fakeBus) Publish(subject string, data any) error {
	f.published = append(f.published, publishedMsg{subject: subject, data: data})
	return nil
}

func (f *fakeBus) PublishMoveTagged(evt bus.MoveTaggedEvent) error {
	if f.taggedErr != nil {
		return f.taggedErr
	}
	f.tagged = append(f.tagged, evt)
	return nil
}

func newTestProcessor(t *testing.T, s ClassificationStore) (*Processor, *fakeBus) {
	t.Helper()
	engine, err := cod.New(cod.VariantLegacy, cod.DefaultThresholds())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	fb := &fakeBus{}
	return New(engine, s, fb, report.NewPublisher(fb), discardLogger()), fb
}

// squeezeMetrics is a quiet preventive squeeze that the legacy engine tags as
// plan_kill and the confirmation gate waves through.
func squeezeMetrics(ply int) cod.Metrics {
	return cod.Metrics{
		Ply:              ply,
		TacticalWeight:   0.3,
		AllowPositional:  true,
		VolatilityDropCP: 120,
		OppMobilityDrop:  0.25,
		TensionDelta:     -0.15,
		PreventiveScore:  0.35,
	}
}

func moveEvent(t *testing.T, gameID, side, san string, m cod.Metrics) []byte {
	t.Helper()
	data, err := json.Marshal(bus.MoveMetricsEvent{GameID: gameID, Side: side, San: san, Metrics: m})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return data
}

func TestHandleMoveMetrics_TagsPersistsAndPublishes(t *testing.T) {
	fs := &fakeStore{}
	p, fb := newTestProcessor(t, fs)

	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "a4", squeezeMetrics(10)))

	if len(fs.writes) != 1 {
		t.Fatalf("expected 1 persisted classification, got %d", len(fs.writes))
	}
	w := fs.writes[0]
	if w.gameID != "game-1" || w.side != "white" || w.ply != 10 || w.san != "a4" {
		t.Errorf("unexpected write call: %+v", w)
	}
	if w.res.Selected == nil || w.res.Selected.Name != cod.SubtypePlanKill {
		t.Errorf("expected plan_kill persisted, got %+v", w.res.Selected)
	}

	if len(fb.tagged) != 1 {
		t.Fatalf("expected 1 tagged event, got %d", len(fb.tagged))
	}
	evt := fb.tagged[0]
	if evt.Subtype != cod.SubtypePlanKill {
		t.Errorf("expected subtype plan_kill, got %s", evt.Subtype)
	}
	if evt.GameID != "game-1" || evt.Side != "white" || evt.Ply != 10 {
		t.Errorf("unexpected tagged event identity: %+v", evt)
	}
	if evt.ClassificationID == "" {
		t.Error("expected classification id on tagged event")
	}
	if evt.Variant != cod.VariantLegacy {
		t.Errorf("expected legacy variant, got %s", evt.Variant)
	}

	stats := p.Status()
	if stats.Processed != 1 || stats.Detected != 1 || stats.ActiveGames != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandleMoveMetrics_GateRejectedCounts(t *testing.T) {
	fs := &fakeStore{}
	p, fb := newTestProcessor(t, fs)

	m := squeezeMetrics(10)
	m.TacticalWeight = 0.9
	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "Nxe5", m))

	if len(fs.writes) != 0 {
		t.Errorf("expected no writes on gate reject, got %d", len(fs.writes))
	}
	if len(fb.tagged) != 0 {
		t.Errorf("expected no tagged events on gate reject, got %d", len(fb.tagged))
	}
	stats := p.Status()
	if stats.Processed != 1 || stats.Detected != 0 || stats.GateRejected != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandleMoveMetrics_CooldownThreadsAcrossMoves(t *testing.T) {
	p, fb := newTestProcessor(t, nil)

	// Ply 10 tags plan_kill and starts the 3-ply cooldown.
	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "a4", squeezeMetrics(10)))
	// Ply 12 is inside the window, so the repeat is suppressed.
	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "a5", squeezeMetrics(12)))
	// Ply 14 is past the window and tags again.
	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "b4", squeezeMetrics(14)))

	if len(fb.tagged) != 2 {
		t.Fatalf("expected 2 tagged events, got %d", len(fb.tagged))
	}
	if fb.tagged[0].Ply != 10 || fb.tagged[1].Ply != 14 {
		t.Errorf("expected tags at plies 10 and 14, got %d and %d", fb.tagged[0].Ply, fb.tagged[1].Ply)
	}

	stats := p.Status()
	if stats.Processed != 3 || stats.Detected != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandleMoveMetrics_SidesThreadIndependently(t *testing.T) {
	p, fb := newTestProcessor(t, nil)

	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "a4", squeezeMetrics(10)))
	// Black's ply 11 lands inside white's window but black has no cooldown.
	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "black", "a5", squeezeMetrics(11)))

	if len(fb.tagged) != 2 {
		t.Fatalf("expected both sides tagged, got %d events", len(fb.tagged))
	}
	if fb.tagged[0].Side != "white" || fb.tagged[1].Side != "black" {
		t.Errorf("unexpected sides: %s, %s", fb.tagged[0].Side, fb.tagged[1].Side)
	}
}

func TestHandleMoveMetrics_OutOfOrderDropped(t *testing.T) {
	p, fb := newTestProcessor(t, nil)

	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "a4", squeezeMetrics(10)))
	// Same ply again and an earlier ply: both dropped.
	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "a4", squeezeMetrics(10)))
	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "Nf3", squeezeMetrics(8)))

	stats := p.Status()
	if stats.Processed != 1 {
		t.Errorf("expected 1 processed move, got %d", stats.Processed)
	}
	if stats.OutOfOrder != 2 {
		t.Errorf("expected 2 out-of-order drops, got %d", stats.OutOfOrder)
	}
	if len(fb.tagged) != 1 {
		t.Errorf("expected 1 tagged event, got %d", len(fb.tagged))
	}
}

func TestHandleMoveMetrics_RejectsMalformedEvents(t *testing.T) {
	p, fb := newTestProcessor(t, nil)

	p.HandleMoveMetrics(bus.SubjectMoveMetrics, []byte("not json"))
	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "", "white", "a4", squeezeMetrics(10)))
	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "w", "a4", squeezeMetrics(10)))
	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "a4", squeezeMetrics(0)))

	stats := p.Status()
	if stats.Processed != 0 {
		t.Errorf("expected no processed moves, got %d", stats.Processed)
	}
	if len(fb.tagged) != 0 {
		t.Errorf("expected no tagged events, got %d", len(fb.tagged))
	}
}

func TestHandleMoveMetrics_StoreErrorStillPublishes(t *testing.T) {
	fs := &fakeStore{writeErr: errors.New("connection refused")}
	p, fb := newTestProcessor(t, fs)

	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "a4", squeezeMetrics(10)))

	if len(fb.tagged) != 1 {
		t.Fatalf("expected tagged event despite store error, got %d", len(fb.tagged))
	}
	if fb.tagged[0].ClassificationID != "" {
		t.Errorf("expected empty classification id when persist fails, got %q", fb.tagged[0].ClassificationID)
	}
}

func TestHandleGameCompleted_PublishesReport(t *testing.T) {
	fs := &fakeStore{
		totals: []store.SubtypeCount{
			{Variant: "legacy", Subtype: "plan_kill", Count: 3},
			{Variant: "legacy", Subtype: "simplify", Count: 1},
		},
	}
	p, fb := newTestProcessor(t, fs)

	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "a4", squeezeMetrics(10)))

	done, err := json.Marshal(bus.GameCompletedEvent{GameID: "game-1", Result: "1-0", TotalPlies: 60})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	p.HandleGameCompleted(bus.SubjectGameCompleted, done)

	stats := p.Status()
	if stats.ActiveGames != 0 {
		t.Errorf("expected game state dropped, got %d active games", stats.ActiveGames)
	}
	if stats.GamesClosed != 1 {
		t.Errorf("expected 1 closed game, got %d", stats.GamesClosed)
	}

	if len(fb.published) != 1 {
		t.Fatalf("expected 1 published report, got %d", len(fb.published))
	}
	if fb.published[0].subject != bus.SubjectReport {
		t.Errorf("expected subject %s, got %s", bus.SubjectReport, fb.published[0].subject)
	}
	evt, ok := fb.published[0].data.(report.GameReportEvent)
	if !ok {
		t.Fatalf("expected a GameReportEvent payload, got %T", fb.published[0].data)
	}
	rep := evt.Report
	if rep.GameID != "game-1" || rep.Result != "1-0" {
		t.Errorf("unexpected report identity: %+v", rep)
	}
	if rep.TaggedMoves != 4 {
		t.Errorf("expected 4 tagged moves, got %d", rep.TaggedMoves)
	}
	if len(rep.Subtypes) != 2 {
		t.Fatalf("expected 2 subtype shares, got %d", len(rep.Subtypes))
	}
	if rep.Subtypes[0].Subtype != "plan_kill" || rep.Subtypes[0].Share != 0.75 {
		t.Errorf("unexpected leading share: %+v", rep.Subtypes[0])
	}
	if len(rep.Subtypes[0].Themes) == 0 || rep.Subtypes[0].Themes[0] != "prophylactic_thinking" {
		t.Errorf("expected plan_kill themes, got %v", rep.Subtypes[0].Themes)
	}
	if !strings.Contains(evt.Headline, "plan_kill leads") {
		t.Errorf("expected headline naming the leading motif, got %q", evt.Headline)
	}
}

func TestHandleGameCompleted_WithoutStore(t *testing.T) {
	p, fb := newTestProcessor(t, nil)

	p.HandleMoveMetrics(bus.SubjectMoveMetrics, moveEvent(t, "game-1", "white", "a4", squeezeMetrics(10)))

	done, err := json.Marshal(bus.GameCompletedEvent{GameID: "game-1"})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	p.HandleGameCompleted(bus.SubjectGameCompleted, done)

	stats := p.Status()
	if stats.GamesClosed != 1 || stats.ActiveGames != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(fb.published) != 0 {
		t.Errorf("expected no report without a store, got %d", len(fb.published))
	}
}

func TestHandleGameCompleted_RejectsMalformedEvents(t *testing.T) {
	p, _ := newTestProcessor(t, nil)

	p.HandleGameCompleted(bus.SubjectGameCompleted, []byte("not json"))
	p.HandleGameCompleted(bus.SubjectGameCompleted, []byte(`{"result":"1-0"}`))

	if stats := p.Status(); stats.GamesClosed != 0 {
		t.Errorf("expected no closed games, got %d", stats.GamesClosed)
	}
}
