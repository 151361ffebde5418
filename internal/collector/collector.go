package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"jobs-etl/internal/config"
)

// ErrNoDataset is returned when the scraping job finished without handing
// back a dataset to read items from.
var ErrNoDataset = errors.New("scraping job returned no dataset id")

// Item is one raw listing exactly as the scraper emitted it.
type Item map[string]interface{}

// Query is the input of a scraping job.
type Query struct {
	Country              string `json:"country"`
	MaxItems             int    `json:"maxItems"`
	Position             string `json:"position"`
	SaveOnlyUniqueItems  bool   `json:"saveOnlyUniqueItems"`
	FollowApplyRedirects bool   `json:"followApplyRedirects"`
	ParseCompanyDetails  bool   `json:"parseCompanyDetails"`
}

func QueryFromConfig(c config.QueryConfig) Query {
	return Query{
		Country:              c.Country,
		MaxItems:             c.MaxItems,
		Position:             c.Position,
		SaveOnlyUniqueItems:  c.SaveOnlyUniqueItems,
		FollowApplyRedirects: c.FollowApplyRedirects,
		ParseCompanyDetails:  c.ParseCompanyDetails,
	}
}

// Collector runs a scraping job and returns everything it produced. An
// empty result is not an error at this level.
type Collector interface {
	Collect(ctx context.Context, q Query) ([]Item, error)
}

// SaveItems writes the raw items to path for the normalizer to pick up.
func SaveItems(path string, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
