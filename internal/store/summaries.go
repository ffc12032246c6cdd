package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type SubtypeCount struct {
	Variant string `json:"variant"`
	Subtype string `json:"subtype"`
	Count   int    `json:"count"`
}

// GateFailureCount is how often one gate key vetoed, across all stored
// diagnostics.
type GateFailureCount struct {
	GateKey string `json:"gate_key"`
	Count   int    `json:"count"`
}

// SubtypeTotals aggregates every stored classification by variant and
// subtype, most frequent first. A zero since means no time filter.
func (s *Store) SubtypeTotals(ctx context.Context, since time.Time) ([]SubtypeCount, error) {
	var rows pgx.Rows
	var err error
	if since.IsZero() {
		rows, err = s.pool.Query(ctx, `
			SELECT variant, subtype, count(*)
			FROM move_classifications
			GROUP BY variant, subtype
			ORDER BY count(*) DESC, subtype`)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT variant, subtype, count(*)
			FROM move_classifications
			WHERE created_at >= $1
			GROUP BY variant, subtype
			ORDER BY count(*) DESC, subtype`, since)
	}
	if err != nil {
		return nil, fmt.Errorf("query subtype totals: %w", err)
	}
	defer rows.Close()

	var out []SubtypeCount
	for rows.Next() {
		var c SubtypeCount
		if err := rows.Scan(&c.Variant, &c.Subtype, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GameSubtypeTotals scopes the aggregation to one game.
func (s *Store) GameSubtypeTotals(ctx context.Context, gameID string) ([]SubtypeCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT variant, subtype, count(*)
		FROM move_classifications
		WHERE game_id = $1
		GROUP BY variant, subtype
		ORDER BY count(*) DESC, subtype`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query game subtype totals: %w", err)
	}
	defer rows.Close()

	var out []SubtypeCount
	for rows.Next() {
		var c SubtypeCount
		if err := rows.Scan(&c.Variant, &c.Subtype, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GateFailureCounts aggregates the stored gate log by gate key, failures
// only.
func (s *Store) GateFailureCounts(ctx context.Context) ([]GateFailureCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT gate_key, count(*)
		FROM classification_gates
		WHERE passed = false
		GROUP BY gate_key
		ORDER BY count(*) DESC, gate_key`)
	if err != nil {
		return nil, fmt.Errorf("query gate failures: %w", err)
	}
	defer rows.Close()

	var out []GateFailureCount
	for rows.Next() {
		var c GateFailureCount
		if err := rows.Scan(&c.GateKey, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
