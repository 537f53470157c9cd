package queue

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vidsaver/vidsaver/errors"
)

// These tests exercise the store's behavior when SQLite itself misbehaves,
// which an in-memory database can't produce on demand.

func TestCreateJobStoreError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO download_jobs").
		WillReturnError(errors.New("database is locked"))

	store := NewStore(db)
	job := NewJob("https://example.com/v/1", "alice")

	if createErr := store.CreateJob(job); createErr == nil {
		t.Fatal("expected error when insert fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations not met: %v", err)
	}
}

func TestClaimNextStoreError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("disk I/O error"))

	store := NewStore(db)
	if _, claimErr := store.ClaimNext(1); claimErr == nil {
		t.Fatal("expected error when transaction cannot begin")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations not met: %v", err)
	}
}

func TestClaimNextRollsBackOnUpdateError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM download_jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("job-1"))
	mock.ExpectExec("UPDATE download_jobs").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	store := NewStore(db)
	if _, claimErr := store.ClaimNext(1); claimErr == nil {
		t.Fatal("expected error when claim update fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations not met: %v", err)
	}
}

func TestGetStatsStoreError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnError(errors.New("database is closed"))

	store := NewStore(db)
	if _, statsErr := store.GetStats(); statsErr == nil {
		t.Fatal("expected error when count query fails")
	}
}
