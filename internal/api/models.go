package api

import (
	"time"

	"jobs-etl/internal/config"
	"jobs-etl/internal/uploader"
)

// RunRequest optionally overrides the scraper query of the configured
// pipeline for a single run. Zero-valued fields keep the configured value.
type RunRequest struct {
	Query *config.QueryConfig `json:"query,omitempty"`
}

// RunResponse is returned after a run has been accepted.
type RunResponse struct {
	RunID string `json:"run_id"`
}

// OutcomeView is the JSON form of an uploader.Outcome.
type OutcomeView struct {
	Index  int    `json:"index"`
	URL    string `json:"job_url"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Cause  string `json:"cause,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RunStatus represents the runtime state of a launched run.
type RunStatus struct {
	RunID      string            `json:"run_id"`
	Status     string            `json:"status"` // queued | running | finished | error | cancelled
	Stage      string            `json:"stage,omitempty"`
	Error      string            `json:"error,omitempty"`
	Scraped    int               `json:"scraped"`
	Summary    *uploader.Summary `json:"summary,omitempty"`
	Outcomes   []OutcomeView     `json:"outcomes,omitempty"`
	ReportPath string            `json:"report_path,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

func outcomeViews(outcomes []uploader.Outcome) []OutcomeView {
	views := make([]OutcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		v := OutcomeView{
			Index:  o.Index,
			URL:    o.URL,
			Title:  o.Title,
			Status: string(o.Status),
			Cause:  string(o.Cause),
		}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		views = append(views, v)
	}
	return views
}
