// Package web implements the HTTP server for the node: it mounts the API
// handlers, the websocket feeds for minted blocks and status logs, the
// rendered documentation and the Prometheus endpoint.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"xyron.node/xyn/internal/api"
	"xyron.node/xyn/internal/docs"
	"xyron.node/xyn/internal/logger"
	"xyron.node/xyn/internal/types"
)

const statusBacklog = 50

// StatsSource provides the tokenomics snapshot sent to new subscribers.
type StatsSource interface {
	Stats() types.Stats
}

// Deps are the collaborators mounted by the Server.
type Deps struct {
	API     *api.Service
	Docs    *docs.Service
	Stats   StatsSource
	Logger  *logger.Logger
	Metrics http.Handler // optional
}

// Server is the web server for the API and push feeds.
type Server struct {
	port    int
	api     *api.Service
	docs    *docs.Service
	stats   StatsSource
	logger  *logger.Logger
	metrics http.Handler
	hub     *Hub
	srv     *http.Server
}

// NewServer creates a new web server.
func NewServer(port int, deps Deps) *Server {
	s := &Server{
		port:    port,
		api:     deps.API,
		docs:    deps.Docs,
		stats:   deps.Stats,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		hub:     newHub(deps.Logger),
	}
	deps.Logger.Subscribe(s.hub.LogMessage)
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Hub returns the websocket hub; register it as a ledger listener.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	a := s.api

	route := func(pattern, name string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, a.Middleware(name, h))
	}

	route("GET /health", "/health", a.HandleHealth)
	route("GET /stats", "/stats", a.HandleStats)
	route("/xyron/validate", "/xyron/validate", a.HandleValidate)
	route("GET /tokenomics", "/tokenomics", a.HandleTokenomics)
	route("GET /blocks", "/blocks", a.HandleBlocks)
	route("GET /blocks/{height}", "/blocks/{height}", a.HandleBlock)
	route("GET /api/version", "/api/version", a.HandleVersion)
	route("GET /api/logs", "/api/logs", a.HandleLogs)
	route("GET /api/participants/{id}", "/api/participants/{id}", a.HandleParticipant)
	route("GET /api/docs", "/api/docs", s.handleDocs)

	mux.HandleFunc("GET /ws/blocks", s.handleBlocksWS)
	mux.HandleFunc("GET /ws/status", s.handleStatusWS)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	route("/", "notfound", s.handleNotFound)
	return mux
}

// Serve runs the server on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Infof("Server listening on %s", ln.Addr())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, `{"status":"error","message":"Endpoint not found","pip":%q}`+"\n", types.StatusActive)
}

// handleDocs lists the available documents, or renders ?name= to HTML.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	s.setCacheHeaders(w)

	name := r.URL.Query().Get("name")
	if name == "" {
		list, err := s.docs.ListDocs()
		if err != nil {
			s.logger.Errorf("List docs: %v", err)
			http.Error(w, "Failed to list docs", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
		return
	}

	html, err := s.docs.GetDoc(r.Context(), name)
	if err != nil {
		s.logger.Warningf("Failed to load doc %s: %v", name, err)
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

// handleBlocksWS streams new_block and halving events. The first frame is a
// connected greeting carrying the current tokenomics.
func (s *Server) handleBlocksWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warningf("WebSocket upgrade failed: %v", err)
		return
	}
	s.hub.serve(conn, feedBlocks, func() [][]byte {
		data, _ := json.Marshal(Event{
			Event:     "connected",
			Timestamp: time.Now().UnixMilli(),
			Data: map[string]any{
				"message":    types.StatusActive,
				"tokenomics": s.stats.Stats(),
			},
		})
		return [][]byte{data}
	})
}

// handleStatusWS streams log messages, oldest first, starting with the last 50.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warningf("WebSocket upgrade failed: %v", err)
		return
	}
	s.hub.serve(conn, feedLogs, func() [][]byte {
		recent := s.logger.GetRecent(statusBacklog)
		frames := make([][]byte, 0, len(recent))
		for i := len(recent) - 1; i >= 0; i-- {
			if data, err := json.Marshal(recent[i]); err == nil {
				frames = append(frames, data)
			}
		}
		return frames
	})
}

// setCacheHeaders sets cache-busting headers to prevent browser caching.
func (s *Server) setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
