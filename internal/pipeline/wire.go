package pipeline

import (
	"jobs-etl/internal/collector"
	"jobs-etl/internal/config"
	"jobs-etl/internal/normalizer"
	"jobs-etl/internal/report"
	"jobs-etl/internal/store"
	"jobs-etl/internal/uploader"
)

// FromConfig wires the production collaborators described by cfg around an
// already opened store.
func FromConfig(cfg *config.Config, st store.Store) (*Pipeline, error) {
	col, err := collector.NewApify(cfg.Collector)
	if err != nil {
		return nil, err
	}
	norm, err := normalizer.New(cfg.Normalizer)
	if err != nil {
		return nil, err
	}

	p := New(cfg, col, norm, uploader.New(st))
	if cfg.Report.OutputDir != "" {
		w, err := report.NewCSVWriter(cfg.Report.OutputDir)
		if err != nil {
			return nil, err
		}
		p.WithReports(w)
	}
	return p, nil
}
