package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateCreatesSchema(t *testing.T) {
	conn := openTestDB(t)

	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	// The jobs table and its claim index must exist.
	var name string
	err := conn.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='download_jobs'`).Scan(&name)
	if err != nil {
		t.Fatalf("download_jobs table missing: %v", err)
	}

	err = conn.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='index' AND name='idx_download_jobs_claim'`).Scan(&name)
	if err != nil {
		t.Fatalf("claim index missing: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := openTestDB(t)

	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count < 2 {
		t.Errorf("expected all migrations recorded once, got %d rows", count)
	}
}

func TestMigratePreservesData(t *testing.T) {
	conn := openTestDB(t)
	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, err := conn.Exec(`
		INSERT INTO download_jobs (id, source_url, owner, status, not_before, created_at, updated_at)
		VALUES ('j1', 'https://example.com/v', 'alice', 'queued',
		        CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := Migrate(conn, nil); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM download_jobs`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("re-running migrations must not touch data, got %d rows", count)
	}
}
