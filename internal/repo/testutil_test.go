package repo_test

import (
	"database/sql"
	"os"
	"testing"

	"github.com/strata-search/strata/internal/config"
	"github.com/strata-search/strata/internal/repo"
)

func openTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := repo.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "strata",
		Password: "strata_pass",
		DBName:   "strata_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// testVector builds a 768-dim vector dominated by one axis so cosine
// ordering in tests is predictable.
func testVector(axis int) []float32 {
	vec := make([]float32, 768)
	vec[axis%768] = 1
	return vec
}
