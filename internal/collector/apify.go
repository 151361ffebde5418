package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobs-etl/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Terminal states of an actor run.
const (
	runSucceeded = "SUCCEEDED"
	runFailed    = "FAILED"
	runAborted   = "ABORTED"
	runTimedOut  = "TIMED-OUT"
)

type actorRun struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

type runEnvelope struct {
	Data actorRun `json:"data"`
}

// Apify starts an actor on the Apify platform, waits for the run to finish
// and lists the items of its default dataset.
type Apify struct {
	http         *resty.Client
	actorID      string
	waitSeconds  int
	pollInterval time.Duration
}

func NewApify(cfg config.CollectorConfig) (*Apify, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("collector.token (or APIFY_TOKEN) is required")
	}
	if cfg.ActorID == "" {
		return nil, fmt.Errorf("collector.actor_id is required")
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/") + "/v2")
	client.SetAuthToken(cfg.Token)
	client.SetHeader("Content-Type", "application/json")

	wait := cfg.WaitSeconds
	if wait <= 0 || wait > 60 {
		wait = 60
	}

	return &Apify{
		http: client,
		// "user/actor" names are addressed as "user~actor" in URLs.
		actorID:      strings.ReplaceAll(cfg.ActorID, "/", "~"),
		waitSeconds:  wait,
		pollInterval: 2 * time.Second,
	}, nil
}

// Collect runs the actor with q as input and returns the dataset items.
func (a *Apify) Collect(ctx context.Context, q Query) ([]Item, error) {
	run, err := a.startRun(ctx, q)
	if err != nil {
		return nil, err
	}
	logrus.Infof("actor run started | actor=%s run=%s status=%s", a.actorID, run.ID, run.Status)

	run, err = a.waitForRun(ctx, run)
	if err != nil {
		return nil, err
	}
	if run.Status != runSucceeded {
		return nil, fmt.Errorf("actor run %s finished with status %s", run.ID, run.Status)
	}
	if run.DefaultDatasetID == "" {
		return nil, ErrNoDataset
	}

	return a.listItems(ctx, run.DefaultDatasetID)
}

func (a *Apify) startRun(ctx context.Context, q Query) (actorRun, error) {
	var env runEnvelope
	res, err := a.http.R().
		SetContext(ctx).
		SetQueryParam("waitForFinish", strconv.Itoa(a.waitSeconds)).
		SetBody(q).
		SetResult(&env).
		Post("/acts/" + a.actorID + "/runs")
	if err != nil {
		return actorRun{}, fmt.Errorf("failed to start actor %s: %w", a.actorID, err)
	}
	if res.IsError() {
		return actorRun{}, fmt.Errorf("failed to start actor %s: %s", a.actorID, apiMessage(res))
	}
	return env.Data, nil
}

// waitForRun long-polls the run until it reaches a terminal status or ctx
// is cancelled.
func (a *Apify) waitForRun(ctx context.Context, run actorRun) (actorRun, error) {
	for !isTerminal(run.Status) {
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-time.After(a.pollInterval):
		}

		var env runEnvelope
		res, err := a.http.R().
			SetContext(ctx).
			SetQueryParam("waitForFinish", strconv.Itoa(a.waitSeconds)).
			SetResult(&env).
			Get("/actor-runs/" + run.ID)
		if err != nil {
			return run, fmt.Errorf("failed to poll actor run %s: %w", run.ID, err)
		}
		if res.IsError() {
			return run, fmt.Errorf("failed to poll actor run %s: %s", run.ID, apiMessage(res))
		}
		run = env.Data
		logrus.Debugf("actor run status | run=%s status=%s", run.ID, run.Status)
	}
	return run, nil
}

func (a *Apify) listItems(ctx context.Context, datasetID string) ([]Item, error) {
	var items []Item
	res, err := a.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"clean": "true", "format": "json"}).
		SetResult(&items).
		Get("/datasets/" + datasetID + "/items")
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset %s: %w", datasetID, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("failed to list dataset %s: %s", datasetID, apiMessage(res))
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

func isTerminal(status string) bool {
	switch status {
	case runSucceeded, runFailed, runAborted, runTimedOut:
		return true
	}
	return false
}

func apiMessage(res *resty.Response) string {
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(res.Body(), &body); err == nil && body.Error.Message != "" {
		return fmt.Sprintf("%d %s: %s", res.StatusCode(), body.Error.Type, body.Error.Message)
	}
	return res.Status()
}
