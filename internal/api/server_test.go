package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobs-etl/internal/config"
	"jobs-etl/internal/pipeline"
	"jobs-etl/internal/uploader"

	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	res     *pipeline.Result
	err     error
	block   chan struct{}
	started chan struct{}
	// finishOnCancel makes a cancelled run still return its result, as the
	// upload stage does.
	finishOnCancel bool
}

func (f *fakeRunner) RunWithID(ctx context.Context, runID string) (*pipeline.Result, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-ctx.Done():
			if !f.finishOnCancel {
				return nil, &pipeline.StageError{Stage: pipeline.StageCollect, Err: ctx.Err()}
			}
		case <-f.block:
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.RunID = runID
	return &res, nil
}

func newTestServer(t *testing.T, r *fakeRunner, seen *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	s := NewServer(&cfg, func(c *config.Config) (Runner, error) {
		if seen != nil {
			*seen = *c
		}
		return r, nil
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func postRun(t *testing.T, srv *httptest.Server, body string) (int, RunResponse) {
	t.Helper()
	res, err := http.Post(srv.URL+"/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	var out RunResponse
	if res.StatusCode == http.StatusAccepted {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res.StatusCode, out
}

func getRun(t *testing.T, srv *httptest.Server, id string) (int, RunStatus) {
	t.Helper()
	res, err := http.Get(srv.URL + "/runs/" + id)
	require.NoError(t, err)
	defer res.Body.Close()
	var st RunStatus
	if res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&st))
	}
	return res.StatusCode, st
}

func TestCreateRunFinishes(t *testing.T) {
	outcomes := []uploader.Outcome{
		{Index: 0, URL: "a", Title: "X", Status: uploader.StatusInserted},
		{Index: 1, URL: "a", Title: "X2", Status: uploader.StatusSkipped},
	}
	r := &fakeRunner{res: &pipeline.Result{Scraped: 2, Outcomes: outcomes, Summary: uploader.Summarize(outcomes)}}
	var seen config.Config
	s, srv := newTestServer(t, r, &seen)

	code, created := postRun(t, srv, `{"query": {"country": "US", "max_items": 3}}`)
	require.Equal(t, http.StatusAccepted, code)
	require.NotEmpty(t, created.RunID)

	s.Wait()

	code, st := getRun(t, srv, created.RunID)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "finished", st.Status)
	require.Equal(t, 2, st.Scraped)
	require.Equal(t, &uploader.Summary{Total: 2, Inserted: 1, Skipped: 1}, st.Summary)
	require.Equal(t, "skipped-duplicate", st.Outcomes[1].Status)
	require.NotNil(t, st.FinishedAt)

	require.Equal(t, "US", seen.Collector.Input.Country)
	require.Equal(t, 3, seen.Collector.Input.MaxItems)
	require.Equal(t, config.DefaultPosition, seen.Collector.Input.Position)
}

func TestCreateRunWithoutBody(t *testing.T) {
	r := &fakeRunner{res: &pipeline.Result{}}
	s, srv := newTestServer(t, r, nil)

	code, _ := postRun(t, srv, "")
	require.Equal(t, http.StatusAccepted, code)
	s.Wait()
}

func TestRunErrorReportsStage(t *testing.T) {
	r := &fakeRunner{err: &pipeline.StageError{Stage: pipeline.StageFormat, Err: errors.New("exit status 1")}}
	s, srv := newTestServer(t, r, nil)

	_, created := postRun(t, srv, "{}")
	s.Wait()

	_, st := getRun(t, srv, created.RunID)
	require.Equal(t, "error", st.Status)
	require.Equal(t, "format", st.Stage)
	require.Contains(t, st.Error, "exit status 1")
}

func TestSecondRunConflictsAndCancel(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}), res: &pipeline.Result{}}
	s, srv := newTestServer(t, r, nil)

	_, created := postRun(t, srv, "")
	<-r.started

	code, _ := postRun(t, srv, "")
	require.Equal(t, http.StatusConflict, code)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/runs/"+created.RunID, nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	s.Wait()
	_, st := getRun(t, srv, created.RunID)
	require.Equal(t, "cancelled", st.Status)

	// a finished run cannot be cancelled again
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestRunRoutesRejectBadRequests(t *testing.T) {
	_, srv := newTestServer(t, &fakeRunner{res: &pipeline.Result{}}, nil)

	code, _ := getRun(t, srv, "nope")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = postRun(t, srv, "{not json")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = postRun(t, srv, `{"query": {"max_items": -1}}`)
	require.Equal(t, http.StatusBadRequest, code)

	res, err := http.Get(srv.URL + "/runs")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestCancelDuringUploadStaysCancelled(t *testing.T) {
	outcomes := []uploader.Outcome{
		{Index: 0, URL: "a", Status: uploader.StatusInserted},
		{Index: 1, URL: "b", Status: uploader.StatusFailed, Cause: uploader.CauseCheckError, Err: context.Canceled},
	}
	r := &fakeRunner{
		block:          make(chan struct{}),
		started:        make(chan struct{}),
		finishOnCancel: true,
		res:            &pipeline.Result{Scraped: 2, Outcomes: outcomes, Summary: uploader.Summarize(outcomes)},
	}
	s, srv := newTestServer(t, r, nil)

	_, created := postRun(t, srv, "")
	<-r.started

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/runs/"+created.RunID, nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	s.Wait()
	_, st := getRun(t, srv, created.RunID)
	require.Equal(t, "cancelled", st.Status)
	require.Equal(t, &uploader.Summary{Total: 2, Inserted: 1, Failed: 1}, st.Summary)
	require.NotNil(t, st.FinishedAt)
}

func TestRunShutdownCancelsActiveRun(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}), res: &pipeline.Result{}}
	s, srv := newTestServer(t, r, nil)

	_, created := postRun(t, srv, "")
	<-r.started

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "0") }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, st := getRun(t, srv, created.RunID)
	require.Equal(t, "cancelled", st.Status)
}
