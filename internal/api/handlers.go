package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"jobs-etl/internal/config"
	"jobs-etl/internal/pipeline"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// handleRuns acts as a multiplexer: POST creates a new run, other verbs not allowed.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createRun(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunByID routes GET and DELETE for specific run IDs.
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	// Expected path: /runs/{id}
	id := strings.TrimPrefix(r.URL.Path, "/runs/")
	if id == "" {
		http.Error(w, "run id missing", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getRun(w, r, id)
	case http.MethodDelete:
		s.cancelRun(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// createRun handles POST /runs
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req RunRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	cfg, err := s.configFor(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	// The store assumes a single writer, so runs never overlap.
	if s.active != "" {
		active := s.active
		s.mu.Unlock()
		cancel()
		http.Error(w, "run "+active+" is still in progress", http.StatusConflict)
		return
	}
	s.active = runID
	s.runs[runID] = &runEntry{
		status: &RunStatus{RunID: runID, Status: "queued", StartedAt: time.Now()},
		cancel: cancel,
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runPipeline(ctx, runID, cfg)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(RunResponse{RunID: runID})
}

// configFor copies the server config and applies the request overrides.
func (s *Server) configFor(req RunRequest) (*config.Config, error) {
	cfg := *s.cfg
	if req.Query != nil {
		if req.Query.MaxItems < 0 {
			return nil, errors.New("query.max_items must not be negative")
		}
		if err := mergo.Merge(&cfg.Collector.Input, *req.Query, mergo.WithOverride); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// runPipeline builds the runner for the run and executes it.
func (s *Server) runPipeline(ctx context.Context, runID string, cfg *config.Config) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if s.active == runID {
			s.active = ""
		}
		s.mu.Unlock()
	}()

	if !s.setStatus(runID, "running") {
		return
	}

	runner, err := s.newRunner(cfg)
	if err != nil {
		s.markRunError(runID, err)
		return
	}

	res, err := runner.RunWithID(ctx, runID)
	if err != nil {
		if ctx.Err() != nil {
			s.setStatus(runID, "cancelled")
			return
		}
		s.markRunError(runID, err)
		return
	}

	// The upload stage keeps going after cancellation and reports the
	// remaining records as failed; such a run stays cancelled.
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.runs[runID]
	entry.status.Scraped = res.Scraped
	summary := res.Summary
	entry.status.Summary = &summary
	entry.status.Outcomes = outcomeViews(res.Outcomes)
	entry.status.ReportPath = res.ReportPath
	if entry.status.Status == "cancelled" || ctx.Err() != nil {
		entry.status.Status = "cancelled"
		if entry.status.FinishedAt == nil {
			finished := time.Now()
			entry.status.FinishedAt = &finished
		}
		return
	}
	entry.status.Status = "finished"
	finished := time.Now()
	entry.status.FinishedAt = &finished
}

// getRun handles GET /runs/{id}
func (s *Server) getRun(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.RLock()
	entry, ok := s.runs[id]
	var status RunStatus
	if ok {
		status = *entry.status
	}
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// cancelRun handles DELETE /runs/{id}
func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	entry, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if st := entry.status.Status; st != "queued" && st != "running" {
		s.mu.Unlock()
		http.Error(w, "run already "+st, http.StatusConflict)
		return
	}
	entry.status.Status = "cancelled"
	finished := time.Now()
	entry.status.FinishedAt = &finished
	cancel := entry.cancel
	s.mu.Unlock()

	cancel()
	w.WriteHeader(http.StatusNoContent)
}

// setStatus moves a run to status unless it was cancelled meanwhile. It
// reports whether the run is still live.
func (s *Server) setStatus(runID, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.runs[runID]
	if !ok || entry.status.Status == "cancelled" {
		return false
	}
	entry.status.Status = status
	if status == "cancelled" {
		finished := time.Now()
		entry.status.FinishedAt = &finished
	}
	return true
}

// markRunError sets the status of the run to error with the provided err.
func (s *Server) markRunError(runID string, err error) {
	logrus.Errorf("run %s failed: %v", runID, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.runs[runID]
	if !ok {
		return
	}
	entry.status.Status = "error"
	entry.status.Error = err.Error()
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		entry.status.Stage = string(stageErr.Stage)
	}
	finished := time.Now()
	entry.status.FinishedAt = &finished
}
