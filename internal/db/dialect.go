package db

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

type Dialect struct {
	Name       string
	DriverName string
	BindType   int
	// Returning is set when inserted ids come back through RETURNING rather
	// than LastInsertId.
	Returning bool
	schema    []string
}

// Schema renders the bootstrap statements for table.
func (d *Dialect) Schema(table string) []string {
	out := make([]string, 0, len(d.schema))
	for _, stmt := range d.schema {
		out = append(out, strings.ReplaceAll(stmt, "{table}", table))
	}
	return out
}

// Key columns compare byte for byte. MySQL gets an explicit binary collation
// since its default one folds case and accents.
var dialects = map[string]*Dialect{
	"mysql": {
		Name:       "mysql",
		DriverName: "mysql",
		BindType:   sqlx.QUESTION,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS {table} (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				source_coordinates LONGTEXT CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
				dest_coordinates LONGTEXT CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
				alg_results LONGTEXT CHARACTER SET utf8mb4 NOT NULL,
				ctime BIGINT NOT NULL DEFAULT 0,
				KEY idx_{table}_coords (source_coordinates(191), dest_coordinates(191)),
				KEY idx_{table}_ctime (ctime)
			)`,
		},
	},
	"postgres": {
		Name:       "postgres",
		DriverName: "postgres",
		BindType:   sqlx.DOLLAR,
		Returning:  true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS {table} (
				id BIGSERIAL PRIMARY KEY,
				source_coordinates TEXT NOT NULL,
				dest_coordinates TEXT NOT NULL,
				alg_results TEXT NOT NULL,
				ctime BIGINT NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_{table}_source ON {table} USING hash (source_coordinates)`,
			`CREATE INDEX IF NOT EXISTS idx_{table}_ctime ON {table} (ctime)`,
		},
	},
	"sqlite": {
		Name:       "sqlite",
		DriverName: "sqlite",
		BindType:   sqlx.QUESTION,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS {table} (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				source_coordinates TEXT NOT NULL,
				dest_coordinates TEXT NOT NULL,
				alg_results TEXT NOT NULL,
				ctime INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_{table}_coords ON {table} (source_coordinates, dest_coordinates)`,
			`CREATE INDEX IF NOT EXISTS idx_{table}_ctime ON {table} (ctime)`,
		},
	},
}

func LookupDialect(driver string) (*Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return nil, fmt.Errorf("unsupported db driver: %s", driver)
	}
	return d, nil
}
