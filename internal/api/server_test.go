package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ply-labs/karpov/internal/cod"
	"github.com/ply-labs/karpov/internal/report"
	"github.com/ply-labs/karpov/internal/sequence"
	"github.com/ply-labs/karpov/internal/store"
)

type fakeReader struct {
	rows      []store.ClassificationRow
	counts    []store.SubtypeCount
	failures  []store.GateFailureCount
	err       error
	lastSince time.Time
}

func (f *fakeReader) GameClassifications(ctx context.Context, gameID string) ([]store.ClassificationRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeReader) SubtypeTotals(ctx context.Context, since time.Time) ([]store.SubtypeCount, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastSince = since
	return f.counts, nil
}

func (f *fakeReader) GateFailureCounts(ctx context.Context) ([]store.GateFailureCount, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.failures, nil
}

type fakePipeline struct {
	stats sequence.Stats
}

func (f *fakePipeline) Status() sequence.Stats { return f.stats }

func newTestServer(t *testing.T, reader ClassificationReader, pipeline StatusSource) *Server {
	t.Helper()
	engine, err := cod.New(cod.VariantLegacy, cod.DefaultThresholds())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return NewServer(8840, "test-token", engine, reader, pipeline)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	pipeline := &fakePipeline{stats: sequence.Stats{Processed: 5, Detected: 2}}
	srv := newTestServer(t, nil, pipeline)

	req := httptest.NewRequest("GET", "/api/v1/karpov/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["service"] != "karpov" {
		t.Errorf("expected service karpov, got %q", body["service"])
	}
	if body["status"] != "ready" {
		t.Errorf("expected status ready, got %q", body["status"])
	}
	if body["variant"] != "legacy" {
		t.Errorf("expected variant legacy, got %q", body["variant"])
	}
	if body["storage"] != false {
		t.Errorf("expected storage false without a reader, got %v", body["storage"])
	}
	pipelineBody, ok := body["pipeline"].(map[string]any)
	if !ok {
		t.Fatalf("expected pipeline stats in response, got %T", body["pipeline"])
	}
	if pipelineBody["processed"] != float64(5) {
		t.Errorf("expected 5 processed, got %v", pipelineBody["processed"])
	}
}

func TestClassifyEndpoint_RoundTrip(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	reqBody := ClassifyRequest{
		Metrics: cod.Metrics{
			Ply:              10,
			TacticalWeight:   0.3,
			AllowPositional:  true,
			VolatilityDropCP: 120,
			OppMobilityDrop:  0.25,
			TensionDelta:     -0.15,
			PreventiveScore:  0.35,
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/classify", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ClassifyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result.Selected == nil {
		t.Fatal("expected a selected subtype")
	}
	if resp.Result.Selected.Name != cod.SubtypePlanKill {
		t.Errorf("expected plan_kill, got %s", resp.Result.Selected.Name)
	}
	if resp.NextCooldown.LastSubtype != cod.SubtypePlanKill || resp.NextCooldown.LastPly != 10 {
		t.Errorf("expected cooldown advanced to plan_kill at ply 10, got %+v", resp.NextCooldown)
	}
}

func TestClassifyEndpoint_Unauthorized(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	body := bytes.NewReader([]byte(`{"metrics":{"ply":10}}`))
	req := httptest.NewRequest("POST", "/api/v1/classify", body)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	body = bytes.NewReader([]byte(`{"metrics":{"ply":10}}`))
	req = httptest.NewRequest("POST", "/api/v1/classify", body)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
}

func TestClassifyEndpoint_BadRequest(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req := httptest.NewRequest("POST", "/api/v1/classify", bytes.NewReader([]byte("not json")))
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/v1/classify", bytes.NewReader([]byte(`{"metrics":{"ply":0}}`)))
	req.Header.Set("Authorization", "Bearer test-token")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing ply, got %d", w.Code)
	}
}

func TestGameClassificationsEndpoint(t *testing.T) {
	reader := &fakeReader{
		rows: []store.ClassificationRow{
			{GameID: "game-1", Side: "white", Ply: 10, Subtype: "plan_kill"},
			{GameID: "game-1", Side: "black", Ply: 17, Subtype: "simplify"},
		},
	}
	srv := newTestServer(t, reader, nil)

	req := httptest.NewRequest("GET", "/api/v1/games/game-1/classifications", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		GameID          string                    `json:"game_id"`
		Classifications []store.ClassificationRow `json:"classifications"`
		Count           int                       `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.GameID != "game-1" {
		t.Errorf("expected game-1, got %q", body.GameID)
	}
	if body.Count != 2 || len(body.Classifications) != 2 {
		t.Errorf("expected 2 classifications, got count=%d len=%d", body.Count, len(body.Classifications))
	}
	if body.Classifications[0].Subtype != "plan_kill" {
		t.Errorf("expected plan_kill first, got %q", body.Classifications[0].Subtype)
	}
}

func TestGameClassificationsEndpoint_NoDatabase(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req := httptest.NewRequest("GET", "/api/v1/games/game-1/classifications", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a database, got %d", w.Code)
	}
}

func TestGameClassificationsEndpoint_QueryError(t *testing.T) {
	srv := newTestServer(t, &fakeReader{err: errors.New("connection refused")}, nil)

	req := httptest.NewRequest("GET", "/api/v1/games/game-1/classifications", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on query error, got %d", w.Code)
	}
}

func TestSubtypeReportEndpoint(t *testing.T) {
	reader := &fakeReader{
		counts: []store.SubtypeCount{
			{Variant: "legacy", Subtype: "plan_kill", Count: 6},
			{Variant: "legacy", Subtype: "simplify", Count: 2},
		},
		failures: []store.GateFailureCount{
			{GateKey: "control_signal", Count: 3},
		},
	}
	srv := newTestServer(t, reader, nil)

	req := httptest.NewRequest("GET", "/api/v1/reports/subtypes", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var rep report.ServiceReport
	if err := json.NewDecoder(w.Body).Decode(&rep); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if rep.TaggedMoves != 8 {
		t.Errorf("expected 8 tagged moves, got %d", rep.TaggedMoves)
	}
	if len(rep.Subtypes) != 2 {
		t.Fatalf("expected 2 subtype shares, got %d", len(rep.Subtypes))
	}
	if rep.Subtypes[0].Share != 0.75 {
		t.Errorf("expected share 0.75, got %f", rep.Subtypes[0].Share)
	}
	if len(rep.GateFailures) != 1 || rep.GateFailures[0].GateKey != "control_signal" {
		t.Errorf("expected gate failures in report, got %+v", rep.GateFailures)
	}
}

func TestSubtypeReportEndpoint_SinceFilter(t *testing.T) {
	reader := &fakeReader{}
	srv := newTestServer(t, reader, nil)

	req := httptest.NewRequest("GET", "/api/v1/reports/subtypes?since=2026-08-01T00:00:00Z", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !reader.lastSince.Equal(want) {
		t.Errorf("expected since %v passed to store, got %v", want, reader.lastSince)
	}

	req = httptest.NewRequest("GET", "/api/v1/reports/subtypes?since=yesterday", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed since, got %d", w.Code)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
