package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// DuckDB persists cached responses in an embedded database so they survive
// restarts.
type DuckDB struct {
	db *sql.DB
}

// NewDuckDB opens (or creates) <dataDir>/duckdb/cache.duckdb.
func NewDuckDB(dataDir string) (*DuckDB, error) {
	duckdbDir := filepath.Join(dataDir, "duckdb")
	if err := os.MkdirAll(duckdbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(duckdbDir, "cache.duckdb"))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS responses (
		key VARCHAR PRIMARY KEY,
		body BLOB NOT NULL,
		expires_at TIMESTAMP NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create responses table: %w", err)
	}
	return &DuckDB{db: db}, nil
}

func (c *DuckDB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var body []byte
	var expires time.Time
	err := c.db.QueryRowContext(ctx,
		"SELECT body, expires_at FROM responses WHERE key = ?", key,
	).Scan(&body, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !time.Now().UTC().Before(expires) {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM responses WHERE key = ?", key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return body, true, nil
}

func (c *DuckDB) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO responses (key, body, expires_at) VALUES (?, ?, ?)",
		key, value, time.Now().UTC().Add(ttl),
	)
	return err
}

func (c *DuckDB) Close() error {
	return c.db.Close()
}
