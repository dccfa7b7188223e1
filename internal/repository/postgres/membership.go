package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MembershipRepo implements segmentation.MembershipStore.
type MembershipRepo struct{ db *sql.DB }

// NewMembershipRepo creates a Postgres-backed membership store.
func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

// Replace swaps the whole membership of a segment inside one transaction:
// delete-all, then bulk insert via COPY. A failure rolls back and leaves
// the previous membership intact, which is what keeps refresh failures
// invisible to downstream readers.
func (r *MembershipRepo) Replace(ctx context.Context, segmentID uuid.UUID, contactIDs []uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM segment_memberships WHERE segment_id = $1`, segmentID,
	); err != nil {
		return fmt.Errorf("clear membership: %w", err)
	}

	if len(contactIDs) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			pq.CopyIn("segment_memberships", "contact_id", "segment_id", "added_at"))
		if err != nil {
			return fmt.Errorf("prepare copy: %w", err)
		}
		now := time.Now()
		for _, contactID := range contactIDs {
			if _, err := stmt.ExecContext(ctx, contactID, segmentID, now); err != nil {
				stmt.Close()
				return fmt.Errorf("copy membership row: %w", err)
			}
		}
		// The empty Exec flushes the COPY buffer.
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flush copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("close copy: %w", err)
		}
	}

	return tx.Commit()
}

func (r *MembershipRepo) Add(ctx context.Context, segmentID, contactID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO segment_memberships (contact_id, segment_id, added_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (contact_id, segment_id) DO NOTHING
	`, contactID, segmentID)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

func (r *MembershipRepo) Remove(ctx context.Context, segmentID, contactID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM segment_memberships WHERE contact_id = $1 AND segment_id = $2`,
		contactID, segmentID,
	)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return nil
}

func (r *MembershipRepo) Count(ctx context.Context, segmentID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM segment_memberships WHERE segment_id = $1`, segmentID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count membership: %w", err)
	}
	return n, nil
}

func (r *MembershipRepo) ListContactIDs(ctx context.Context, segmentID uuid.UUID, limit, offset int) ([]uuid.UUID, error) {
	query := `
		SELECT contact_id FROM segment_memberships
		WHERE segment_id = $1
		ORDER BY added_at, contact_id`
	args := []any{segmentID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list membership: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
