package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var copyQuery = regexp.QuoteMeta(pq.CopyIn("segment_memberships", "contact_id", "segment_id", "added_at"))

func TestMembershipReplace(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewMembershipRepo(db)

	segmentID := uuid.New()
	contacts := []uuid.UUID{uuid.New(), uuid.New()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM segment_memberships WHERE segment_id = $1`)).
		WithArgs(segmentID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	prep := mock.ExpectPrepare(copyQuery)
	for range contacts {
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	}
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0)) // flush
	mock.ExpectCommit()

	if err := repo.Replace(context.Background(), segmentID, contacts); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMembershipReplaceEmptySet(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewMembershipRepo(db)

	segmentID := uuid.New()

	// An empty match set is valid: the old membership is cleared and no
	// COPY happens at all.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM segment_memberships WHERE segment_id = $1`)).
		WithArgs(segmentID).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	if err := repo.Replace(context.Background(), segmentID, nil); err != nil {
		t.Fatalf("Replace with empty set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMembershipReplaceRollsBackOnCopyFailure(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewMembershipRepo(db)

	segmentID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM segment_memberships WHERE segment_id = $1`)).
		WithArgs(segmentID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(copyQuery)
	prep.ExpectExec().WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), segmentID, []uuid.UUID{uuid.New()})
	if err == nil {
		t.Fatal("Replace should surface the copy failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMembershipAddIsIdempotent(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewMembershipRepo(db)

	segmentID, contactID := uuid.New(), uuid.New()

	// ON CONFLICT DO NOTHING: zero rows affected is still success.
	mock.ExpectExec("INSERT INTO segment_memberships").
		WithArgs(contactID, segmentID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Add(context.Background(), segmentID, contactID); err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func TestMembershipCount(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewMembershipRepo(db)

	segmentID := uuid.New()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(segmentID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.Count(context.Background(), segmentID)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 7 {
		t.Errorf("Count = %d, want 7", n)
	}
}
