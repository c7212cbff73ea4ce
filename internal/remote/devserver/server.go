// Package devserver is a single-account progress backend for development and
// testing. It keeps one reading-progress document in memory, merges incoming
// pushes with the stored document, and streams every accepted push to
// connected devices over server-sent events.
package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/readwellapp/readwell-server/internal/domain"
)

const maxPushBytes = 10 << 20

// Server holds the document state and HTTP handlers.
type Server struct {
	logger      *slog.Logger
	broadcaster *broadcaster

	mu  sync.Mutex
	doc *domain.RemoteDocument
}

// New creates a dev server with no stored document.
func New(logger *slog.Logger) *Server {
	return &Server{
		logger:      logger,
		broadcaster: newBroadcaster(logger),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/health", s.handleHealth)
	r.Get("/v1/progress", s.handleGetDocument)
	r.Put("/v1/progress", s.handlePutDocument)
	r.Get("/v1/progress/events", s.handleEvents)

	return r
}

// Close disconnects all event stream clients.
func (s *Server) Close() {
	s.broadcaster.closeAll()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
}

func (s *Server) handleGetDocument(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()

	if doc == nil {
		http.Error(w, "no document", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		s.logger.Error("encode document response", "error", err)
	}
}

// handlePutDocument accepts a device's push and merges it into the stored
// document. Merging, not replacing, means two devices racing a push cannot
// erase each other's per-item facts.
func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	var incoming domain.RemoteDocument
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPushBytes))
	if err := dec.Decode(&incoming); err != nil {
		http.Error(w, "malformed document: "+err.Error(), http.StatusBadRequest)
		return
	}
	if incoming.DeviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}
	if incoming.PushedAt.IsZero() {
		incoming.PushedAt = time.Now()
	}

	s.mu.Lock()
	if s.doc == nil {
		s.doc = &incoming
	} else {
		s.doc = &domain.RemoteDocument{
			DeviceID: incoming.DeviceID,
			PushedAt: incoming.PushedAt,
			Progress: domain.MergeMaps(s.doc.Progress, incoming.Progress),
		}
	}
	stored := s.doc
	s.mu.Unlock()

	payload, err := json.Marshal(stored)
	if err != nil {
		s.logger.Error("encode stored document", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.broadcaster.broadcast(payload)

	s.logger.Info("document push accepted",
		"device_id", incoming.DeviceID,
		"items", len(stored.Progress))
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams document updates as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c := s.broadcaster.connect()
	defer s.broadcaster.disconnect(c.id)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case payload, open := <-c.events:
			if !open {
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
