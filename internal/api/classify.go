package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ply-labs/karpov/internal/cod"
	"github.com/ply-labs/karpov/internal/report"
)

// ClassifyRequest carries one move and the caller-owned cooldown state. The
// endpoint is stateless: nothing is persisted and the caller threads the
// returned cooldown into its next request.
type ClassifyRequest struct {
	Metrics  cod.Metrics       `json:"metrics"`
	Cooldown cod.CooldownState `json:"cooldown"`
}

// ClassifyResponse returns the full diagnostic result plus the successor
// cooldown state.
type ClassifyResponse struct {
	Result       cod.Result        `json:"result"`
	NextCooldown cod.CooldownState `json:"next_cooldown"`
}

// classify handles POST /api/v1/classify.
func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"invalid JSON: %v"}`, err), http.StatusBadRequest)
		return
	}
	if req.Metrics.Ply <= 0 {
		http.Error(w, `{"error":"metrics.ply must be positive"}`, http.StatusBadRequest)
		return
	}

	res, next := s.engine.Classify(req.Metrics, req.Cooldown)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ClassifyResponse{Result: res, NextCooldown: next})
}

// gameClassifications handles GET /api/v1/games/{gameID}/classifications.
func (s *Server) gameClassifications(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		http.Error(w, `{"error":"database not configured"}`, http.StatusServiceUnavailable)
		return
	}
	gameID := chi.URLParam(r, "gameID")

	rows, err := s.reader.GameClassifications(r.Context(), gameID)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"query failed: %v"}`, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"game_id":         gameID,
		"classifications": rows,
		"count":           len(rows),
	})
}

// subtypeReport handles GET /api/v1/reports/subtypes. An optional since
// query parameter (RFC3339) narrows the window.
func (s *Server) subtypeReport(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		http.Error(w, `{"error":"database not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, `{"error":"invalid since parameter, want RFC3339"}`, http.StatusBadRequest)
			return
		}
		since = parsed
	}

	counts, err := s.reader.SubtypeTotals(r.Context(), since)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"query failed: %v"}`, err), http.StatusInternalServerError)
		return
	}
	failures, err := s.reader.GateFailureCounts(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"query failed: %v"}`, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report.BuildServiceReport(counts, failures))
}
