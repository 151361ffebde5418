package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jobs-etl/internal/record"

	"github.com/go-resty/resty/v2"
)

// APIError is the error body returned by PostgREST.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("postgrest %d", e.Status)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

// PostgREST talks to a Supabase (or plain PostgREST) table over HTTP.
type PostgREST struct {
	http  *resty.Client
	table string
}

func NewPostgREST(baseURL, apiKey, table string) *PostgREST {
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(baseURL, "/") + "/rest/v1")
	client.SetHeader("apikey", apiKey)
	client.SetAuthToken(apiKey)
	client.SetTimeout(time.Second * 30)

	return &PostgREST{http: client, table: table}
}

// FindByURL reports whether a row exists for url. Only the key column is
// fetched, so the returned record carries the URL alone. The table may hold
// duplicate rows written by racing runs; any of them counts as found.
func (p *PostgREST) FindByURL(ctx context.Context, url string) (*record.Record, error) {
	res, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("select", record.KeyField).
		SetQueryParam(record.KeyField, "eq."+url).
		SetQueryParam("limit", "1").
		Get("/" + p.table)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, decodeAPIError(res)
	}

	var rows []record.Record
	if err := json.Unmarshal(res.Body(), &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows for %s: %w", url, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (p *PostgREST) Insert(ctx context.Context, rec record.Record) error {
	res, err := p.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal").
		SetBody([]map[string]interface{}{rec.Flatten()}).
		Post("/" + p.table)
	if err != nil {
		return err
	}
	if res.IsError() {
		return decodeAPIError(res)
	}
	return nil
}

func decodeAPIError(res *resty.Response) *APIError {
	apiErr := &APIError{Status: res.StatusCode()}
	if err := json.Unmarshal(res.Body(), apiErr); err != nil || (apiErr.Message == "" && apiErr.Code == "") {
		apiErr.Message = strings.TrimSpace(string(res.Body()))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode())
		}
	}
	return apiErr
}
