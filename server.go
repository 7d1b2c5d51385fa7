package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/nimdanitro/ubibot-scraper-go/pkg/telemetry"
	"github.com/nimdanitro/ubibot-scraper-go/pkg/ubibot"
)

const MaxHistoryLimit = 1000

//go:embed dashboard.html
var dashboardHTML []byte

type telemetryReader interface {
	Latest(ctx context.Context) (telemetry.Snapshot, error)
	History(ctx context.Context, limit int) telemetry.History
}

type server struct {
	engine telemetryReader
	log    *zap.Logger
}

func newHandler(engine telemetryReader, logger *zap.Logger) http.Handler {
	s := &server{engine: engine, log: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/latest", s.handleLatest)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return otelhttp.NewHandler(s.withRequestID(mux), "ubibot-scraper")
}

func (s *server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("served request",
			zap.String("requestId", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(dashboardHTML)
}

func (s *server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Latest(r.Context())
	if err != nil {
		s.log.Error("cannot build latest snapshot", zap.Error(err))
		status := http.StatusBadGateway
		var upErr *ubibot.UpstreamError
		if !errors.As(err, &upErr) {
			status = http.StatusInternalServerError
		}
		s.writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := historyLimit(r.URL.Query().Get("results"))
	s.writeJSON(w, http.StatusOK, s.engine.History(r.Context(), limit))
}

// historyLimit parses the results parameter, clamped to [1, MaxHistoryLimit].
func historyLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return telemetry.DefaultHistoryLimit
	}
	if n > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return n
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.Error("cannot encode response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
