package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/xxxsen/routecache/internal/config"
	"github.com/xxxsen/routecache/internal/db"
)

// OpenTestDB opens a pool with a freshly created result table. It uses a
// sqlite file under t.TempDir unless TEST_DB_DRIVER and TEST_DB_DSN point at
// another backend.
func OpenTestDB(t *testing.T) (*db.DB, string) {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver:   os.Getenv("TEST_DB_DRIVER"),
		DSN:      os.Getenv("TEST_DB_DSN"),
		PoolSize: config.DefaultPoolSize,
	}
	if cfg.Driver == "" || cfg.DSN == "" {
		cfg.Driver = "sqlite"
		cfg.DSN = "file:" + filepath.Join(t.TempDir(), "routecache.db") + "?_pragma=busy_timeout(5000)"
	}
	conn, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	table := "route_results_" + randomSuffix()
	if err := conn.EnsureTable(context.Background(), table); err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.Exec("DROP TABLE " + table)
		_ = conn.Close()
	})
	return conn, table
}

func randomSuffix() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
