package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"jobs-etl/internal/record"

	"github.com/sirupsen/logrus"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaTemplate string

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore persists records in a SQL table through database/sql. It is used
// with the "sqlite" driver for local files and the "libsql" driver for
// remote Turso/libSQL databases.
type SQLStore struct {
	db    *sql.DB
	table string
}

// OpenSQL opens dsn with the given driver and makes sure the jobs table
// exists. The table carries a unique index on job_url so that two pipeline
// runs racing on the same URL cannot both insert.
func OpenSQL(driver, dsn, table string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is empty", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// modernc sqlite serialises writers anyway; one connection keeps
		// :memory: databases from splitting into several.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, err
		}
	}

	s, err := NewSQL(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	logrus.Debugf("opened %s store | table=%s", driver, table)
	return s, nil
}

// NewSQL wraps an already opened database.
func NewSQL(db *sql.DB, table string) (*SQLStore, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLStore{db: db, table: table}, nil
}

// EnsureSchema creates the table and its index when missing. It never alters
// an existing table.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	ddl := strings.ReplaceAll(schemaTemplate, "{{table}}", s.table)
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) FindByURL(ctx context.Context, url string) (*record.Record, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT job_url, title, fields FROM %s WHERE job_url = ? LIMIT 1", s.table),
		url,
	)

	var (
		rec    record.Record
		fields string
	)
	if err := row.Scan(&rec.URL, &rec.Title, &fields); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	decoded, err := record.DecodeMap([]byte(fields))
	if err != nil {
		return nil, fmt.Errorf("corrupt fields column for %s: %w", url, err)
	}
	rec.Fields = decoded
	return &rec, nil
}

func (s *SQLStore) Insert(ctx context.Context, rec record.Record) error {
	fields := rec.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (job_url, title, fields, created_at) VALUES (?, ?, ?, ?)", s.table),
		rec.URL, rec.Title, string(encoded), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Count returns the number of rows stored for url.
func (s *SQLStore) Count(ctx context.Context, url string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE job_url = ?", s.table), url,
	).Scan(&n)
	return n, err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
