// Package db provides the DuckDB connection used for ad-hoc SQL over
// fetched building shards.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create duckdb directory: %w", err)
			return
		}

		dbPath := filepath.Join(duckdbDir, cfg.DBName+".duckdb")
		instance, initErr = sql.Open("duckdb", dbPath)
	})
	return instance, initErr
}

// Close closes the database connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}

// RegisterShardView exposes a decompressed shard CSV as a queryable
// view named {token}_buildings, with the fixed shard column layout.
func RegisterShardView(db *sql.DB, token, csvPath string) error {
	if db == nil {
		return nil
	}
	if !validToken(token) {
		return fmt.Errorf("invalid cell token %q", token)
	}

	stmt := fmt.Sprintf(`CREATE OR REPLACE VIEW "%s_buildings" AS
SELECT * FROM read_csv('%s', header=false, columns={
  'latitude': 'DOUBLE',
  'longitude': 'DOUBLE',
  'area_in_meters': 'DOUBLE',
  'confidence': 'DOUBLE',
  'geometry': 'VARCHAR',
  'full_plus_code': 'VARCHAR'
})`, token, strings.ReplaceAll(csvPath, "'", "''"))

	_, err := db.Exec(stmt)
	return err
}

// DropShardViews removes every registered shard view. Cache
// invalidation calls this so no view outlives the CSV it reads.
func DropShardViews(db *sql.DB) error {
	if db == nil {
		return nil
	}

	rows, err := db.Query(`SELECT view_name FROM duckdb_views() WHERE NOT internal AND view_name LIKE '%\_buildings' ESCAPE '\'`)
	if err != nil {
		return fmt.Errorf("failed to list shard views: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			names = append(names, name)
		}
	}
	rows.Close()

	for _, name := range names {
		if !validToken(strings.TrimSuffix(name, "_buildings")) {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf(`DROP VIEW IF EXISTS "%s"`, name)); err != nil {
			return fmt.Errorf("failed to drop view %s: %w", name, err)
		}
	}
	return nil
}

// validToken accepts S2 cell tokens, which are lowercase hex.
func validToken(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
