package report

import (
	"testing"

	"github.com/ply-labs/karpov/internal/bus"
	"github.com/ply-labs/karpov/internal/store"
)

type fakeBus struct {
	subjects []string
	payloads []any
}

func (f *fakeBus) Publish(subject string, data any) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestPublisher_PublishGameReport(t *testing.T) {
	fb := &fakeBus{}
	pub := NewPublisher(fb)

	rep := BuildGameReport("game-1", "1-0", []store.SubtypeCount{
		{Variant: "legacy", Subtype: "plan_kill", Count: 3},
		{Variant: "legacy", Subtype: "simplify", Count: 1},
	})

	if err := pub.PublishGameReport(rep); err != nil {
		t.Fatalf("PublishGameReport failed: %v", err)
	}
	if len(fb.subjects) != 1 || fb.subjects[0] != bus.SubjectReport {
		t.Fatalf("expected one publish on %s, got %v", bus.SubjectReport, fb.subjects)
	}

	evt, ok := fb.payloads[0].(GameReportEvent)
	if !ok {
		t.Fatalf("expected GameReportEvent payload, got %T", fb.payloads[0])
	}
	if evt.Report.GameID != "game-1" {
		t.Errorf("expected game-1, got %q", evt.Report.GameID)
	}
	want := "game game-1: 4 control-over-dynamics move(s) across 2 motif(s), plan_kill leads (75%)"
	if evt.Headline != want {
		t.Errorf("headline = %q, want %q", evt.Headline, want)
	}
}

func TestPublisher_HeadlineWithoutMotifs(t *testing.T) {
	fb := &fakeBus{}
	pub := NewPublisher(fb)

	if err := pub.PublishGameReport(BuildGameReport("game-2", "", nil)); err != nil {
		t.Fatalf("PublishGameReport failed: %v", err)
	}

	evt := fb.payloads[0].(GameReportEvent)
	if evt.Headline != "game game-2: no control-over-dynamics motifs" {
		t.Errorf("unexpected headline: %q", evt.Headline)
	}
}
