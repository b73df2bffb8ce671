package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cuemby/txstream/internal/obsmetrics"
)

// Server serves /health, /ready and /metrics for one process.
type Server struct {
	checks map[string]Checker
	mux    *http.ServeMux
	http   *http.Server
}

// NewServer builds a Server. Register readiness dependencies with
// AddCheck before Start.
func NewServer() *Server {
	s := &Server{checks: make(map[string]Checker), mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/ready", s.readyHandler)
	s.mux.Handle("/metrics", obsmetrics.Handler())
	return s
}

// AddCheck registers a named readiness dependency, e.g. "blobstore".
func (s *Server) AddCheck(name string, c Checker) {
	s.checks[name] = c
}

// Start serves the health mux on addr until the process exits or an error
// occurs; callers typically run it in its own goroutine under an errgroup.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the health server; safe to call even if Start
// has not yet installed the underlying http.Server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Handler exposes the mux for embedding in another server.
func (s *Server) Handler() http.Handler { return s.mux }

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "healthy", Timestamp: time.Now()})
}

type readyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.checks))
	ready := true
	for name, c := range s.checks {
		result := c.Check(ctx)
		if result.Healthy {
			checks[name] = "ok"
		} else {
			checks[name] = result.Message
			ready = false
		}
	}

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not ready"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(readyResponse{Status: status, Timestamp: time.Now(), Checks: checks})
}
