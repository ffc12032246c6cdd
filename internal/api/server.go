package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ply-labs/karpov/internal/cod"
	"github.com/ply-labs/karpov/internal/sequence"
	"github.com/ply-labs/karpov/internal/store"
)

// ClassificationReader is the read-only slice of the store the API serves
// from. It stays nil when the service runs without a database.
type ClassificationReader interface {
	GameClassifications(ctx context.Context, gameID string) ([]store.ClassificationRow, error)
	SubtypeTotals(ctx context.Context, since time.Time) ([]store.SubtypeCount, error)
	GateFailureCounts(ctx context.Context) ([]store.GateFailureCount, error)
}

// StatusSource exposes the pipeline counters.
type StatusSource interface {
	Status() sequence.Stats
}

type Server struct {
	router   *chi.Mux
	port     int
	engine   cod.Engine
	reader   ClassificationReader
	pipeline StatusSource
}

func NewServer(port int, apiToken string, engine cod.Engine, reader ClassificationReader, pipeline StatusSource) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		engine:   engine,
		reader:   reader,
		pipeline: pipeline,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/karpov/status", s.status)
	router.Get("/api/v1/games/{gameID}/classifications", s.gameClassifications)
	router.Get("/api/v1/reports/subtypes", s.subtypeReport)

	router.Route("/api/v1/classify", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/", s.classify)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"service": "karpov",
		"status":  "ready",
		"variant": string(s.engine.Variant()),
		"storage": s.reader != nil,
	}
	if s.pipeline != nil {
		resp["pipeline"] = s.pipeline.Status()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
