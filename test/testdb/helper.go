package testdb

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// TestDB wraps a connection to the migrated test database. Each Setup
// starts from empty tables, so tests never see each other's rows.
type TestDB struct {
	DB *sqlx.DB
}

// Setup connects to the test database and wipes the analytics tables.
// Tests are skipped when no migrated test database is reachable, so the
// suite stays runnable without infrastructure.
func Setup(t *testing.T) *TestDB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=athletics password=athletics dbname=athletics_test sslmode=disable"
	}

	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("test database not reachable: %v", err)
	}

	for _, table := range []string{"alerts", "observations", "attendance", "metric_catalog"} {
		if _, err := conn.Exec("DELETE FROM " + table); err != nil {
			conn.Close()
			t.Skipf("test database not migrated: %v", err)
		}
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return &TestDB{DB: conn}
}

// Exec executes SQL against the test database
func (tdb *TestDB) Exec(t *testing.T, query string, args ...interface{}) {
	t.Helper()

	if _, err := tdb.DB.Exec(query, args...); err != nil {
		t.Fatalf("failed to execute query: %v\nQuery: %s", err, query)
	}
}

// Count returns the row count for a WHERE-less or parameterized count query
func (tdb *TestDB) Count(t *testing.T, query string, args ...interface{}) int {
	t.Helper()

	var count int
	if err := tdb.DB.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatalf("failed to count rows: %v\nQuery: %s", err, query)
	}
	return count
}
