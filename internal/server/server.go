// Package server exposes the latest analysis runs over HTTP: JSON report
// endpoints plus a WebSocket feed of run events for live dashboards.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/codescope-dev/codescope/internal/config"
	"github.com/codescope-dev/codescope/internal/engine"
	"github.com/codescope-dev/codescope/internal/logging"
	"github.com/codescope-dev/codescope/internal/registry"
)

// ReportServer serves analysis results from a run registry.
type ReportServer struct {
	cfg      config.ServeConfig
	registry *registry.RunRegistry
	logger   logging.Logger
	http     *http.Server
}

// New creates a report server backed by reg.
func New(cfg config.ServeConfig, reg *registry.RunRegistry, logger logging.Logger) *ReportServer {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	s := &ReportServer{
		cfg:      cfg,
		registry: reg,
		logger:   logger.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyzers", s.handleAnalyzers)
	mux.HandleFunc("/api/report/", s.handleReport)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, used by tests.
func (s *ReportServer) Handler() http.Handler { return s.http.Handler }

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *ReportServer) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	s.logger.Debug(ctx, "report server listening", "addr", s.http.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// analyzerSummary is the wire form of one registered run.
type analyzerSummary struct {
	Analyzer    string          `json:"analyzer"`
	Stats       engine.RunStats `json:"stats"`
	CompletedAt time.Time       `json:"completed_at"`
}

func (s *ReportServer) handleAnalyzers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runs := s.registry.GetAll()
	summaries := make([]analyzerSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, analyzerSummary{
			Analyzer:    run.Analyzer,
			Stats:       run.Stats,
			CompletedAt: run.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *ReportServer) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/report/")
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "analyzer name required", http.StatusBadRequest)
		return
	}

	run, ok := s.registry.Get(name)
	if !ok {
		http.Error(w, fmt.Sprintf("no run registered for analyzer %q", name), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analyzer":     run.Analyzer,
		"stats":        run.Stats,
		"completed_at": run.CompletedAt,
		"aggregate":    run.Aggregate,
	})
}

// runEventMessage is the wire form of a registry event.
type runEventMessage struct {
	Type        string          `json:"type"`
	Analyzer    string          `json:"analyzer"`
	Stats       engine.RunStats `json:"stats"`
	CompletedAt time.Time       `json:"completed_at"`
}

func (s *ReportServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events := s.registry.Watch()
	defer s.registry.UnWatch(events)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			msg := runEventMessage{
				Type:        eventTypeName(event.Type),
				Analyzer:    event.Run.Analyzer,
				Stats:       event.Run.Stats,
				CompletedAt: event.Run.CompletedAt,
			}
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, conn, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func eventTypeName(t registry.EventType) string {
	switch t {
	case registry.EventTypeAdded:
		return "added"
	case registry.EventTypeUpdated:
		return "updated"
	case registry.EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
