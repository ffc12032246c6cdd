package report

import (
	"math"
	"time"

	"github.com/ply-labs/karpov/internal/store"
)

// GameReport summarises the confirmed classifications of one finished game.
type GameReport struct {
	GameID      string         `json:"game_id"`
	Result      string         `json:"result,omitempty"`
	TaggedMoves int            `json:"tagged_moves"`
	Subtypes    []SubtypeShare `json:"subtypes"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// ServiceReport summarises everything the service has classified so far.
// RareShare is the combined share of the motifs that rarely fire; a drift
// there is the first sign of detector or threshold regressions.
type ServiceReport struct {
	TaggedMoves  int                      `json:"tagged_moves"`
	Subtypes     []SubtypeShare           `json:"subtypes"`
	RareShare    float64                  `json:"rare_share"`
	GateFailures []store.GateFailureCount `json:"gate_failures,omitempty"`
	GeneratedAt  time.Time                `json:"generated_at"`
}

// SubtypeShare is one subtype's slice of the tagged moves. Share is rounded
// to three decimals; the exact count is right next to it.
type SubtypeShare struct {
	Variant string   `json:"variant"`
	Subtype string   `json:"subtype"`
	Count   int      `json:"count"`
	Share   float64  `json:"share"`
	Themes  []string `json:"themes,omitempty"`
}

// BuildGameReport turns stored per-game totals into the published report.
func BuildGameReport(gameID, result string, counts []store.SubtypeCount) GameReport {
	total, shares := buildShares(counts)
	return GameReport{
		GameID:      gameID,
		Result:      result,
		TaggedMoves: total,
		Subtypes:    shares,
		GeneratedAt: time.Now().UTC(),
	}
}

// BuildServiceReport turns service-wide totals into the report served over
// HTTP.
func BuildServiceReport(counts []store.SubtypeCount, failures []store.GateFailureCount) ServiceReport {
	total, shares := buildShares(counts)
	return ServiceReport{
		TaggedMoves:  total,
		Subtypes:     shares,
		RareShare:    rareShare(counts, total),
		GateFailures: failures,
		GeneratedAt:  time.Now().UTC(),
	}
}

// rareMotifs are the legacy subtypes that fire seldom enough that their
// combined share works as a regression signal.
var rareMotifs = map[string]bool{
	"freeze_bind":     true,
	"space_clamp":     true,
	"blockade_passed": true,
}

func rareShare(counts []store.SubtypeCount, total int) float64 {
	if total == 0 {
		return 0
	}
	rare := 0
	for _, c := range counts {
		if rareMotifs[c.Subtype] {
			rare += c.Count
		}
	}
	return round3(float64(rare) / float64(total))
}

func buildShares(counts []store.SubtypeCount) (int, []SubtypeShare) {
	total := 0
	for _, c := range counts {
		total += c.Count
	}

	mapper := NewThemeMapper()
	shares := make([]SubtypeShare, 0, len(counts))
	for _, c := range counts {
		share := 0.0
		if total > 0 {
			share = round3(float64(c.Count) / float64(total))
		}
		shares = append(shares, SubtypeShare{
			Variant: c.Variant,
			Subtype: c.Subtype,
			Count:   c.Count,
			Share:   share,
			Themes:  mapper.ThemesFor(c.Subtype),
		})
	}
	return total, shares
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
