package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobs-etl/internal/collector"
	"jobs-etl/internal/config"
	"jobs-etl/internal/normalizer"
	"jobs-etl/internal/report"
	"jobs-etl/internal/uploader"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNoRecords aborts a run whose scraping job produced nothing; there is
// no point formatting or uploading an empty file.
var ErrNoRecords = errors.New("no jobs scraped")

// Stage names a step of the pipeline.
type Stage string

const (
	StageCollect Stage = "collect"
	StageFormat  Stage = "format"
	StageUpload  Stage = "upload"
)

// StageError is the fatal error of a run: the stage that failed and why.
// Later stages have not been started.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result describes a completed run.
type Result struct {
	RunID      string
	Scraped    int
	Outcomes   []uploader.Outcome
	Summary    uploader.Summary
	ReportPath string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Pipeline runs collect → format → upload, one stage after the other.
//
// The caller builds every collaborator so tests can substitute any of them.
type Pipeline struct {
	cfg        *config.Config
	collector  collector.Collector
	normalizer normalizer.Normalizer
	uploader   *uploader.Uploader
	reports    *report.CSVWriter
}

func New(cfg *config.Config, c collector.Collector, n normalizer.Normalizer, u *uploader.Uploader) *Pipeline {
	return &Pipeline{cfg: cfg, collector: c, normalizer: n, uploader: u}
}

// WithReports makes every run also write its outcomes through w.
func (p *Pipeline) WithReports(w *report.CSVWriter) *Pipeline {
	p.reports = w
	return p
}

// Run executes a full pipeline run under a fresh run id.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	return p.RunWithID(ctx, uuid.NewString())
}

// RunWithID executes a full pipeline run. The returned error, if any, is a
// *StageError; per-record upload failures are not errors and are reported
// through Result.Outcomes.
func (p *Pipeline) RunWithID(ctx context.Context, runID string) (*Result, error) {
	res := &Result{RunID: runID, StartedAt: time.Now()}
	log := logrus.WithField("run", runID)
	log.Infof("starting pipeline | scraped=%s formatted=%s", p.cfg.Paths.Scraped, p.cfg.Paths.Formatted)

	fail := func(stage Stage, err error) (*Result, error) {
		log.Errorf("pipeline aborted at %s stage: %v", stage, err)
		return nil, &StageError{Stage: stage, Err: err}
	}

	// 1. Collect
	startTs := time.Now()
	log.Info("running scraper…")
	scraped, err := p.Collect(ctx)
	if err != nil {
		return fail(StageCollect, err)
	}
	res.Scraped = scraped
	log.Infof("[OK] collect | items=%d time=%.2fs", scraped, time.Since(startTs).Seconds())

	// 2. Format
	startTs = time.Now()
	log.Info("formatting job data…")
	if err := p.normalizer.Normalize(ctx, p.cfg.Paths.Scraped, p.cfg.Paths.Formatted); err != nil {
		return fail(StageFormat, err)
	}
	log.Infof("[OK] format | time=%.2fs", time.Since(startTs).Seconds())

	// 3. Upload
	startTs = time.Now()
	log.Info("uploading jobs…")
	outcomes, err := p.uploader.UploadFile(ctx, p.cfg.Paths.Formatted)
	if err != nil {
		return fail(StageUpload, err)
	}
	res.Outcomes = outcomes
	res.Summary = uploader.Summarize(outcomes)
	log.Infof("[OK] upload | inserted=%d skipped=%d failed=%d time=%.2fs",
		res.Summary.Inserted, res.Summary.Skipped, res.Summary.Failed, time.Since(startTs).Seconds())

	if p.reports != nil {
		// The store is already updated; a missing report must not fail the run.
		if fp, err := p.reports.Write(runID, outcomes); err != nil {
			log.Warnf("failed to write upload report: %v", err)
		} else {
			res.ReportPath = fp
		}
	}

	res.FinishedAt = time.Now()
	log.Infof("pipeline completed | total=%d time=%.2fs", res.Summary.Total, res.FinishedAt.Sub(res.StartedAt).Seconds())
	return res, nil
}

// Collect runs only the scraping stage and writes its items to the scraped
// path. Zero items is reported as ErrNoRecords and nothing is written.
func (p *Pipeline) Collect(ctx context.Context) (int, error) {
	items, err := p.collector.Collect(ctx, collector.QueryFromConfig(p.cfg.Collector.Input))
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, ErrNoRecords
	}
	if err := collector.SaveItems(p.cfg.Paths.Scraped, items); err != nil {
		return 0, err
	}
	return len(items), nil
}
