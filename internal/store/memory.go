package store

import (
	"context"
	"sort"
	"sync"

	"jobs-etl/internal/record"
)

// Memory keeps rows in a map keyed by job_url. It backs dry runs and tests.
// Like the remote stores it does not reject a second row for a URL on its
// own; callers that skip the existence check will overwrite.
type Memory struct {
	mu   sync.Mutex
	rows map[string]record.Record
}

func NewMemory(seed ...record.Record) *Memory {
	m := &Memory{rows: make(map[string]record.Record, len(seed))}
	for _, r := range seed {
		m.rows[r.URL] = r
	}
	return m
}

func (m *Memory) FindByURL(_ context.Context, url string) (*record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[url]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) Insert(_ context.Context, rec record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[rec.URL] = rec
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// All returns the stored rows sorted by URL.
func (m *Memory) All() []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]record.Record, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
