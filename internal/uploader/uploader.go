package uploader

import (
	"context"
	"errors"

	"jobs-etl/internal/record"
	"jobs-etl/internal/store"

	"github.com/sirupsen/logrus"
)

// Uploader persists normalized records, skipping those whose job_url is
// already stored.
//
// Records are handled strictly one after another: the existence check of
// record i+1 only starts once record i has been inserted, so two entries of
// the same batch sharing a URL never both pass the check. Overlapping
// Uploaders writing to the same store are not coordinated; that is left to
// the store's own uniqueness constraint.
type Uploader struct {
	store store.Store
}

func New(s store.Store) *Uploader {
	return &Uploader{store: s}
}

// UploadFile loads the normalizer output at path and uploads it. Failing to
// load the file is the only error returned; in that case nothing has been
// written and no outcomes exist.
func (u *Uploader) UploadFile(ctx context.Context, path string) ([]Outcome, error) {
	recs, err := record.Load(path)
	if err != nil {
		return nil, err
	}
	logrus.Infof("loaded %d records from %s", len(recs), path)
	return u.Upload(ctx, recs), nil
}

// Upload checks and inserts every record in order and returns one outcome
// per record, in input order. Individual failures never abort the batch.
func (u *Uploader) Upload(ctx context.Context, recs []record.Record) []Outcome {
	outcomes := make([]Outcome, 0, len(recs))
	for i, rec := range recs {
		o := u.uploadOne(ctx, rec)
		o.Index = i
		logOutcome(o)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (u *Uploader) uploadOne(ctx context.Context, rec record.Record) Outcome {
	o := Outcome{URL: rec.URL, Title: rec.Title}

	if err := rec.Validate(); err != nil {
		o.Status, o.Cause, o.Err = StatusFailed, CauseInvalidRecord, err
		return o
	}

	existing, err := u.store.FindByURL(ctx, rec.URL)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		o.Status, o.Cause, o.Err = StatusFailed, CauseCheckError, err
		return o
	case existing != nil:
		o.Status = StatusSkipped
		return o
	}

	if err := u.store.Insert(ctx, rec); err != nil {
		o.Status, o.Cause, o.Err = StatusFailed, CauseInsertError, err
		return o
	}
	o.Status = StatusInserted
	return o
}

func logOutcome(o Outcome) {
	switch o.Status {
	case StatusInserted:
		logrus.Infof("[OK] job '%s' uploaded | url=%s", o.Title, o.URL)
	case StatusSkipped:
		logrus.Infof("[SKIP] duplicate job '%s' | url=%s", o.Title, o.URL)
	case StatusFailed:
		logrus.Errorf("[FAIL] job '%s' %s | url=%s err=%v", o.Title, o.Cause, o.URL, o.Err)
	}
}
