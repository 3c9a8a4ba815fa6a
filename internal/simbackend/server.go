package simbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/flowdeck/core/logging"
)

// Server exposes the backend contract over HTTP: the REST command surface
// plus the WebSocket push channel at /api/simulation/stream.
type Server struct {
	logger *logrus.Entry
	hub    *hub
	engine *Engine
	server *http.Server

	mu    sync.Mutex
	saved map[string]bool
}

// New creates a Server with a fresh engine.
func New(opts EngineOptions) *Server {
	logger := logging.NewLogger("simbackend")
	h := newHub(logger)
	return &Server{
		logger: logger,
		hub:    h,
		engine: NewEngine(logger, h, opts),
		saved:  make(map[string]bool),
	}
}

// Handler returns the server's HTTP handler, for tests that mount it on
// httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/simulation/launch", s.handleLaunch)
	mux.HandleFunc("/api/simulation/pause/", s.commandHandler(s.engine.Pause))
	mux.HandleFunc("/api/simulation/resume/", s.commandHandler(s.engine.Resume))
	mux.HandleFunc("/api/simulation/stop/", s.commandHandler(s.engine.Stop))
	mux.HandleFunc("/api/simulation/zoom/", s.handleZoom)
	mux.HandleFunc("/api/simulation/save-session", s.handleSave)
	mux.HandleFunc("/api/simulation/stream", s.hub.handleStream)

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenAndServe starts the backend on addr and blocks until shutdown.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{Handler: s.Handler()}
	s.logger.WithField("addr", listener.Addr().String()).Info("Simulation backend listening")
	return s.server.Serve(listener)
}

// Shutdown stops the engine, disconnects stream clients and closes the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down simulation backend...")
	s.engine.Shutdown()
	s.hub.closeAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleLaunch starts a synthetic run. A rejection keeps HTTP 200 with
// success=false and a human-readable message, matching the engine wire
// contract.
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SessionID   string `json:"sessionId"`
		SessionPath string `json:"sessionPath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		writeJSON(w, map[string]interface{}{
			"success": false,
			"message": "sessionId is required",
		})
		return
	}

	pid, port, ok, message := s.engine.Launch(req.SessionID)
	if !ok {
		writeJSON(w, map[string]interface{}{
			"success": false,
			"message": message,
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"success": true,
		"process": map[string]int{"processId": pid, "port": port},
	})
}

// commandHandler adapts a process-scoped engine operation to the
// POST /api/simulation/<cmd>/{processId} wire shape.
func (s *Server) commandHandler(op func(id int) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, err := trailingID(r.URL.Path)
		if err != nil {
			http.Error(w, "invalid process id", http.StatusBadRequest)
			return
		}
		if !op(id) {
			writeJSON(w, map[string]interface{}{
				"success": false,
				"message": fmt.Sprintf("no running process with id %d", id),
			})
			return
		}
		writeJSON(w, map[string]interface{}{"success": true})
	}
}

// handleZoom serves GET (authoritative level) and POST (absolute set) for
// one process.
func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	id, err := trailingID(r.URL.Path)
	if err != nil {
		http.Error(w, "invalid process id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		level, ok := s.engine.Zoom(id)
		if !ok {
			writeJSON(w, map[string]interface{}{
				"success": false,
				"message": fmt.Sprintf("no running process with id %d", id),
			})
			return
		}
		writeJSON(w, map[string]interface{}{
			"success":   true,
			"zoomLevel": level,
		})

	case http.MethodPost:
		var req struct {
			ZoomLevel float64 `json:"zoomLevel"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if !s.engine.SetZoom(id, req.ZoomLevel) {
			writeJSON(w, map[string]interface{}{
				"success": false,
				"message": fmt.Sprintf("no running process with id %d", id),
			})
			return
		}
		writeJSON(w, map[string]interface{}{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSave records the save request. The synthetic backend has no result
// files; a session is simply remembered as saved.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		writeJSON(w, map[string]interface{}{
			"success": false,
			"message": "sessionId is required",
		})
		return
	}

	s.mu.Lock()
	s.saved[req.SessionID] = true
	s.mu.Unlock()
	s.logger.WithField("session", req.SessionID).Info("Session saved")
	writeJSON(w, map[string]interface{}{"success": true})
}

// Saved reports whether a session was saved, for tests.
func (s *Server) Saved(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[sessionID]
}

// trailingID parses the process id from the last path segment.
func trailingID(path string) (int, error) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 || idx == len(path)-1 {
		return 0, fmt.Errorf("missing process id in %s", path)
	}
	return strconv.Atoi(path[idx+1:])
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
