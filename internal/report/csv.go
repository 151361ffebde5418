package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"jobs-etl/internal/uploader"
)

var header = []string{"index", "job_url", "title", "status", "cause", "error"}

// CSVWriter stores the outcomes of every upload run as
// <outputDir>/upload_<runID>.csv, one row per input record in input order.
type CSVWriter struct {
	outputDir string
}

// NewCSVWriter initialises a writer for the given directory, creating the
// directory tree if it doesn't already exist.
func NewCSVWriter(outputDir string) (*CSVWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &CSVWriter{outputDir: outputDir}, nil
}

// Write creates the report for runID and returns its path. An existing file
// for the same run is replaced.
func (w *CSVWriter) Write(runID string, outcomes []uploader.Outcome) (string, error) {
	fp := filepath.Join(w.outputDir, fmt.Sprintf("upload_%s.csv", runID))

	f, err := os.Create(fp)
	if err != nil {
		return "", fmt.Errorf("failed to open csv file %s: %w", fp, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("failed to write csv header for %s: %w", fp, err)
	}
	for _, o := range outcomes {
		var msg string
		if o.Err != nil {
			msg = o.Err.Error()
		}
		row := []string{strconv.Itoa(o.Index), o.URL, o.Title, string(o.Status), string(o.Cause), msg}
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush %s: %w", fp, err)
	}
	return fp, nil
}
