package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"voyager/internal/scanner"
	"voyager/internal/strategy"
)

// Server exposes the last scan outcome for external polling
type Server struct {
	status scanner.StatusStore
	srv    *http.Server
}

// NewServer creates a status server over the given store
func NewServer(status scanner.StatusStore) *Server {
	return &Server{status: status}
}

// Start starts the server on the specified port; blocks until shutdown
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/strategies", s.handleStrategies)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      corsMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("[WEB] Status server at http://localhost:%d/api/status", port)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// handleStatus serves the most recent cycle outcome
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	last := s.status.LastCycle()
	if last == nil {
		http.Error(w, `{"error":"no cycle completed yet"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, last)
}

// handleStrategies lists the registered strategy plugins
func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	type info struct {
		ID         string              `json:"id"`
		Name       string              `json:"name"`
		Version    string              `json:"version"`
		Timeframes []string            `json:"timeframes"`
		Params     []strategy.ParamDef `json:"params,omitempty"`
	}

	var out []info
	for _, p := range strategy.All() {
		tfs := make([]string, 0, len(p.RequiredTimeframes()))
		for _, tf := range p.RequiredTimeframes() {
			tfs = append(tfs, string(tf))
		}
		out = append(out, info{
			ID:         p.ID(),
			Name:       p.Name(),
			Version:    p.Version(),
			Timeframes: tfs,
			Params:     p.ParamSchema(),
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WEB] Warning: encode response: %v", err)
	}
}

// corsMiddleware adds CORS headers for local development
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
