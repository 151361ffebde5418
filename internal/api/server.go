package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"jobs-etl/internal/config"
	"jobs-etl/internal/pipeline"

	"github.com/sirupsen/logrus"
)

// Runner executes one pipeline run. *pipeline.Pipeline satisfies it.
type Runner interface {
	RunWithID(ctx context.Context, runID string) (*pipeline.Result, error)
}

// RunnerFactory builds the runner for a run from the effective config.
type RunnerFactory func(cfg *config.Config) (Runner, error)

// Server encapsulates the HTTP server, router and run registry.
type Server struct {
	mux       *http.ServeMux
	cfg       *config.Config
	newRunner RunnerFactory

	mu     sync.RWMutex
	runs   map[string]*runEntry
	active string // id of the queued or running run, if any
	wg     sync.WaitGroup
}

type runEntry struct {
	status *RunStatus
	cancel context.CancelFunc // allows cancellation via DELETE /runs/{id}
}

// NewServer builds a server with basic logging and panic recovery middlewares.
func NewServer(cfg *config.Config, newRunner RunnerFactory) *Server {
	mux := http.NewServeMux()
	s := &Server{
		mux:       mux,
		cfg:       cfg,
		newRunner: newRunner,
		runs:      make(map[string]*runEntry),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/runs", s.handleRuns)     // POST /runs
	s.mux.HandleFunc("/runs/", s.handleRunByID) // GET/DELETE /runs/{id}
}

// Handler returns the routed handler wrapped in the middlewares.
func (s *Server) Handler() http.Handler {
	return s.recoveryMiddleware(s.loggingMiddleware(s.mux))
}

// Run serves on the provided port until ctx is cancelled. On shutdown the
// active run is cancelled and awaited before Run returns.
func (s *Server) Run(ctx context.Context, port string) error {
	addr := fmt.Sprintf(":%s", port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("HTTP server running on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.cancelAll()
	s.Wait()
	return err
}

func (s *Server) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.runs {
		if st := entry.status.Status; st == "queued" || st == "running" {
			entry.cancel()
		}
	}
}

// Wait blocks until every background run has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Simple request logger middleware.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.Infof("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware catches panics and returns 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.Errorf("panic recovered: %v", rec)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
