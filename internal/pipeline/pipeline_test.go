package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"jobs-etl/internal/collector"
	"jobs-etl/internal/config"
	"jobs-etl/internal/normalizer"
	"jobs-etl/internal/record"
	"jobs-etl/internal/report"
	"jobs-etl/internal/store"
	"jobs-etl/internal/uploader"

	"github.com/stretchr/testify/require"
)

type fakeCollector struct {
	items []collector.Item
	err   error
	got   collector.Query
}

func (f *fakeCollector) Collect(_ context.Context, q collector.Query) ([]collector.Item, error) {
	f.got = q
	return f.items, f.err
}

type countingNormalizer struct {
	inner normalizer.Normalizer
	err   error
	calls int
}

func (c *countingNormalizer) Normalize(ctx context.Context, in, out string) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	return c.inner.Normalize(ctx, in, out)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.Scraped = filepath.Join(dir, "scraped_jobs.json")
	cfg.Paths.Formatted = filepath.Join(dir, "formatted_jobs.json")
	return &cfg
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	col := &fakeCollector{items: []collector.Item{
		{"positionName": "Go Developer", "url": "https://x/1"},
		{"positionName": "SRE", "url": "https://x/2"},
		{"positionName": "Go Developer (repost)", "url": "https://x/1"},
		{"positionName": "No link"},
	}}
	norm := &countingNormalizer{inner: normalizer.Builtin{}}
	s := store.NewMemory(record.Record{URL: "https://x/2", Title: "SRE"})

	reports, err := report.NewCSVWriter(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)

	p := New(cfg, col, norm, uploader.New(s)).WithReports(reports)
	res, err := p.RunWithID(context.Background(), "run-1")
	require.NoError(t, err)

	require.Equal(t, "run-1", res.RunID)
	require.Equal(t, 4, res.Scraped)
	require.Equal(t, uploader.Summary{Total: 4, Inserted: 1, Skipped: 2, Failed: 1}, res.Summary)
	require.Equal(t, uploader.StatusInserted, res.Outcomes[0].Status)
	require.Equal(t, uploader.StatusSkipped, res.Outcomes[1].Status)
	require.Equal(t, uploader.StatusSkipped, res.Outcomes[2].Status)
	require.Equal(t, uploader.CauseInvalidRecord, res.Outcomes[3].Cause)
	require.Equal(t, 2, s.Len())
	require.FileExists(t, res.ReportPath)

	require.Equal(t, "IN", col.got.Country)
	require.Equal(t, 15, col.got.MaxItems)
}

func TestRunCollectorFailureStopsPipeline(t *testing.T) {
	cfg := testConfig(t)
	norm := &countingNormalizer{inner: normalizer.Builtin{}}
	p := New(cfg, &fakeCollector{err: collector.ErrNoDataset}, norm, uploader.New(store.NewMemory()))

	res, err := p.Run(context.Background())
	require.Nil(t, res)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageCollect, stageErr.Stage)
	require.ErrorIs(t, err, collector.ErrNoDataset)
	require.Zero(t, norm.calls)
}

func TestRunNoRecordsIsFatal(t *testing.T) {
	cfg := testConfig(t)
	norm := &countingNormalizer{inner: normalizer.Builtin{}}
	p := New(cfg, &fakeCollector{items: []collector.Item{}}, norm, uploader.New(store.NewMemory()))

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, ErrNoRecords)
	require.Zero(t, norm.calls)
	_, statErr := os.Stat(cfg.Paths.Scraped)
	require.True(t, os.IsNotExist(statErr))
}

func TestRunNormalizerFailureSkipsUpload(t *testing.T) {
	cfg := testConfig(t)
	s := store.NewMemory()
	norm := &countingNormalizer{err: errors.New("exit status 1")}
	p := New(cfg, &fakeCollector{items: []collector.Item{{"url": "u"}}}, norm, uploader.New(s))

	_, err := p.Run(context.Background())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageFormat, stageErr.Stage)
	require.Zero(t, s.Len())
}

// A normalizer that reports success without producing output leaves the
// uploader with nothing to load.
type silentNormalizer struct{}

func (silentNormalizer) Normalize(context.Context, string, string) error { return nil }

func TestRunUploadLoadFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, &fakeCollector{items: []collector.Item{{"url": "u"}}}, silentNormalizer{}, uploader.New(store.NewMemory()))

	_, err := p.Run(context.Background())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageUpload, stageErr.Stage)
}

func TestFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.OutputDir = filepath.Join(t.TempDir(), "reports")

	_, err := FromConfig(cfg, store.NewMemory())
	require.Error(t, err, "collector token is required")

	cfg.Collector.Token = "tok"
	p, err := FromConfig(cfg, store.NewMemory())
	require.NoError(t, err)
	require.NotNil(t, p.reports)
	require.DirExists(t, cfg.Report.OutputDir)
}
