package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresSource reads the catalog from the guide_entries table. This is the
// deployment shape where the 48-hour upload job and the API server do not
// share a filesystem: the job upserts rows, the API reads them.
//
// Schema:
//
//	CREATE TABLE guide_entries (
//	    guide_key    text PRIMARY KEY,
//	    display_name text NOT NULL DEFAULT '',
//	    file_uri     text NOT NULL DEFAULT '',
//	    mime_type    text NOT NULL DEFAULT 'application/pdf',
//	    expires_at   timestamptz
//	);
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource wraps an open, verified connection pool. Use OpenDB to
// create one with sensible pool tuning.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (p *PostgresSource) String() string { return "postgres:guide_entries" }

// Load reads every guide entry row.
func (p *PostgresSource) Load(ctx context.Context) (map[string]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT guide_key, display_name, file_uri, mime_type, expires_at
		FROM guide_entries
	`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]Entry)
	for rows.Next() {
		var e Entry
		var expiresAt sql.NullTime
		if err := rows.Scan(&e.GuideKey, &e.DisplayName, &e.FileURI, &e.MimeType, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if expiresAt.Valid {
			e.ExpiresAt = expiresAt.Time
		}
		if e.MimeType == "" {
			e.MimeType = "application/pdf"
		}
		entries[e.GuideKey] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

// OpenDB opens and verifies the catalog connection pool. The catalog is
// read-only and low-traffic, so the pool is kept small.
func OpenDB(dsn string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	pool.SetMaxOpenConns(5)
	pool.SetMaxIdleConns(2)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}
