package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Reserved keys of the flat JSON representation. Everything else ends up in
// Record.Fields untouched.
const (
	KeyField   = "job_url"
	TitleField = "title"
)

// ErrMissingURL is returned by Validate when a record carries no identifying URL.
var ErrMissingURL = errors.New("record has no job_url")

// Record is a normalized job listing as produced by the normalizer and
// consumed by the uploader.
//
// URL is the natural key: two records with the same URL describe the same
// listing. Fields holds every other attribute (company, location, salary...)
// and is persisted as-is.
type Record struct {
	URL    string
	Title  string
	Fields map[string]interface{}
}

// Validate reports whether the record can be checked against the store.
func (r Record) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return ErrMissingURL
	}
	return nil
}

// Flatten returns the single-level map representation used on the wire and
// in the store ({"job_url": ..., "title": ..., <fields>}).
func (r Record) Flatten() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Fields)+2)
	for k, v := range r.Fields {
		m[k] = v
	}
	m[KeyField] = r.URL
	m[TitleField] = r.Title
	return m
}

// FromMap builds a Record out of a flat map. Non-string key or title values
// are rendered with fmt so nothing is lost.
func FromMap(m map[string]interface{}) Record {
	rec := Record{Fields: make(map[string]interface{}, len(m))}
	for k, v := range m {
		switch k {
		case KeyField:
			rec.URL = stringify(v)
		case TitleField:
			rec.Title = stringify(v)
		default:
			rec.Fields[k] = v
		}
	}
	return rec
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flatten())
}

func (r *Record) UnmarshalJSON(data []byte) error {
	m, err := DecodeMap(data)
	if err != nil {
		return err
	}
	*r = FromMap(m)
	return nil
}

// DecodeMap decodes a JSON object keeping numbers as json.Number, so large
// integers survive a load and store round trip unchanged.
func DecodeMap(data []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads the JSON array written by the normalizer.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records from %s: %w", path, err)
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode records from %s: %w", path, err)
	}
	return recs, nil
}

// Save writes records as an indented JSON array, creating parent directories.
func Save(path string, recs []Record) error {
	if recs == nil {
		recs = []Record{}
	}
	data, err := json.MarshalIndent(recs, "", "    ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
