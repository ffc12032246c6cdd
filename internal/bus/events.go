package bus

import "github.com/ply-labs/karpov/internal/cod"

// Subjects consumed and emitted by the classifier service. The two
// chess.analysis.* subjects are owned by the upstream metrics extractor; the
// chess.karpov.* subjects are ours.
const (
	SubjectMoveMetrics   = "chess.analysis.move.metrics"
	SubjectGameCompleted = "chess.analysis.game.completed"
	SubjectMoveTagged    = "chess.karpov.move.tagged"
	SubjectRegistered    = "chess.karpov.registered"
	SubjectReport        = "chess.karpov.report.generated"
)

// MoveMetricsEvent is one analysed move. The ply lives inside the metrics
// snapshot; game_id plus side identify the cooldown sequence it belongs to.
type MoveMetricsEvent struct {
	GameID  string      `json:"game_id"`
	Side    string      `json:"side"`
	San     string      `json:"san,omitempty"`
	Metrics cod.Metrics `json:"metrics"`
}

// GameCompletedEvent closes a game: both sides' cooldown sequences are
// finished and per-game summaries may be emitted.
type GameCompletedEvent struct {
	GameID     string `json:"game_id"`
	Result     string `json:"result,omitempty"`
	TotalPlies int    `json:"total_plies,omitempty"`
}

// MoveTaggedEvent is emitted for every move that earned a subtype.
type MoveTaggedEvent struct {
	ClassificationID  string        `json:"classification_id"`
	GameID            string        `json:"game_id"`
	Side              string        `json:"side"`
	Ply               int           `json:"ply"`
	San               string        `json:"san,omitempty"`
	Variant           cod.Variant   `json:"variant"`
	Subtype           cod.Subtype   `json:"subtype"`
	Score             float64       `json:"score"`
	Why               string        `json:"why"`
	Tags              []string      `json:"tags"`
	Suppressed        []cod.Subtype `json:"suppressed,omitempty"`
	CooldownRemaining int           `json:"cooldown_remaining"`
}
