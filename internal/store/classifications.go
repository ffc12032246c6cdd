package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ply-labs/karpov/internal/cod"
)

// WriteClassification writes one confirmed classification across the
// classifier tables. Tables: move_classifications, classification_gates,
// classification_suppressed. The full gate log goes in so a stored row can
// answer "why this subtype and not another" without replaying the move.
func (s *Store) WriteClassification(ctx context.Context, gameID, side string, ply int, san string, res cod.Result) (uuid.UUID, error) {
	if !res.Detected() {
		return uuid.Nil, fmt.Errorf("no selected subtype for %s ply %d", gameID, ply)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	classificationID := uuid.New()
	sel := res.Selected
	_, err = tx.Exec(ctx, `
		INSERT INTO move_classifications (id, game_id, side, ply, san, variant, subtype, score, why, phase, cooldown_remaining, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())`,
		classificationID, gameID, side, ply, san,
		string(res.Variant), sel.Name.String(), sel.Score, sel.Why,
		string(res.Phase), res.CooldownRemaining, res.Tags,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert classification: %w", err)
	}

	for key, rec := range res.GateLog {
		checks, _ := json.Marshal(rec.Checks)
		observed, _ := json.Marshal(rec.Observed)
		_, err = tx.Exec(ctx, `
			INSERT INTO classification_gates (id, classification_id, gate_key, passed, checks, observed)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), classificationID, key, rec.Passed, checks, observed,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert gate %s: %w", key, err)
		}
	}

	for i, name := range res.Suppressed {
		_, err = tx.Exec(ctx, `
			INSERT INTO classification_suppressed (id, classification_id, subtype, position)
			VALUES ($1, $2, $3, $4)`,
			uuid.New(), classificationID, name.String(), i,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert suppressed %s: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	return classificationID, nil
}

// GameClassifications fetches the stored classifications for one game in ply
// order.
func (s *Store) GameClassifications(ctx context.Context, gameID string) ([]ClassificationRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, game_id, side, ply, san, variant, subtype, score, why, phase, cooldown_remaining, tags, created_at
		FROM move_classifications WHERE game_id = $1 ORDER BY ply`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query classifications: %w", err)
	}
	defer rows.Close()

	var out []ClassificationRow
	for rows.Next() {
		var r ClassificationRow
		err := rows.Scan(&r.ID, &r.GameID, &r.Side, &r.Ply, &r.San, &r.Variant, &r.Subtype,
			&r.Score, &r.Why, &r.Phase, &r.CooldownRemaining, &r.Tags, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type ClassificationRow struct {
	ID                uuid.UUID `json:"id"`
	GameID            string    `json:"game_id"`
	Side              string    `json:"side"`
	Ply               int       `json:"ply"`
	San               string    `json:"san,omitempty"`
	Variant           string    `json:"variant"`
	Subtype           string    `json:"subtype"`
	Score             float64   `json:"score"`
	Why               string    `json:"why"`
	Phase             string    `json:"phase"`
	CooldownRemaining int       `json:"cooldown_remaining"`
	Tags              []string  `json:"tags"`
	CreatedAt         time.Time `json:"created_at"`
}
