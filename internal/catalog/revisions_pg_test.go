package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRevisionRepoPublish(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRevisionRepo{DB: db}
	rev := Revision{
		ID:        "rev-1",
		Version:   "v1",
		Checksum:  "abc",
		Document:  []byte(`{"version":"v1"}`),
		Author:    "alice",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE catalog_revisions SET active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO catalog_revisions").
		WithArgs(
			rev.ID,
			rev.Version,
			rev.Checksum,
			string(rev.Document),
			"alice",
			nil, // note
			rev.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.Publish(context.Background(), rev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRevisionRepoPublishRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE catalog_revisions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO catalog_revisions").WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	repo := &PGRevisionRepo{DB: db}
	if err := repo.Publish(context.Background(), Revision{ID: "rev-2"}); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRevisionRepoActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "version", "checksum", "document", "author", "note", "active", "created_at"}).
		AddRow("rev-1", "v1", "abc", `{"version":"v1"}`, nil, "initial", true, created)
	mock.ExpectQuery("SELECT id, version, checksum, document").WillReturnRows(rows)

	repo := &PGRevisionRepo{DB: db}
	rev, err := repo.Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if rev.ID != "rev-1" || string(rev.Document) != `{"version":"v1"}` || rev.Author != "" || rev.Note != "initial" || !rev.CreatedAt.Equal(created) {
		t.Fatalf("unexpected revision %+v", rev)
	}

	mock.ExpectQuery("SELECT id, version, checksum, document").
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "checksum", "document", "author", "note", "active", "created_at"}))
	if _, err := repo.Active(context.Background()); !errors.Is(err, ErrNoRevision) {
		t.Fatalf("expected ErrNoRevision, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRevisionRepoList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "version", "checksum", "document", "author", "note", "active", "created_at"}).
		AddRow("rev-2", "v2", "def", "", "bob", nil, true, now).
		AddRow("rev-1", "v1", "abc", "", nil, nil, false, now.Add(-time.Hour))
	mock.ExpectQuery("ORDER BY created_at DESC").WithArgs(50, 0).WillReturnRows(rows)

	repo := &PGRevisionRepo{DB: db}
	revs, err := repo.List(context.Background(), 0, -3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(revs) != 2 || revs[0].ID != "rev-2" || revs[0].Document != nil || revs[1].Active {
		t.Fatalf("unexpected revisions %+v", revs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
