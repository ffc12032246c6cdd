package report

import (
	"fmt"

	"github.com/ply-labs/karpov/internal/bus"
)

// GameReportEvent wraps a finished game's report for the wire, with a
// one-line headline for consumers that only want the gist.
type GameReportEvent struct {
	Report   GameReport `json:"report"`
	Headline string     `json:"headline"`
}

// Bus is the slice of the bus client the publisher needs.
type Bus interface {
	Publish(subject string, data any) error
}

// Publisher publishes generated reports to NATS.
type Publisher struct {
	bus Bus
}

// NewPublisher creates a report publisher.
func NewPublisher(b Bus) *Publisher {
	return &Publisher{bus: b}
}

// PublishGameReport publishes one finished game's report.
func (p *Publisher) PublishGameReport(rep GameReport) error {
	event := GameReportEvent{
		Report:   rep,
		Headline: headline(rep),
	}
	return p.bus.Publish(bus.SubjectReport, event)
}

// headline creates a human-readable summary of the report.
func headline(rep GameReport) string {
	if rep.TaggedMoves == 0 {
		return fmt.Sprintf("game %s: no control-over-dynamics motifs", rep.GameID)
	}
	lead := rep.Subtypes[0]
	return fmt.Sprintf("game %s: %d control-over-dynamics move(s) across %d motif(s), %s leads (%d%%)",
		rep.GameID, rep.TaggedMoves, len(rep.Subtypes), lead.Subtype, int(lead.Share*100))
}
