package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/segmentation"
)

// SegmentRepo implements segmentation.SegmentStore.
type SegmentRepo struct{ db *sql.DB }

// NewSegmentRepo creates a Postgres-backed segment store.
func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{db: db} }

func (r *SegmentRepo) Create(ctx context.Context, seg *segmentation.ContactSegment) error {
	if seg.ID == uuid.Nil {
		seg.ID = uuid.New()
	}
	now := time.Now()
	seg.CreatedAt = now
	seg.UpdatedAt = now

	conditions, err := marshalConditions(seg.Conditions)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contact_segments (
			id, owner_id, name, description, conditions, is_active,
			is_auto_update, contact_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)
	`, seg.ID, seg.OwnerID, seg.Name, seg.Description, conditions,
		seg.IsActive, seg.IsAutoUpdate, seg.CreatedAt, seg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) Get(ctx context.Context, segmentID uuid.UUID) (*segmentation.ContactSegment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, description, conditions, is_active,
			is_auto_update, contact_count, last_updated_at, created_at, updated_at
		FROM contact_segments
		WHERE id = $1
	`, segmentID)

	seg, err := scanSegment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

func (r *SegmentRepo) Update(ctx context.Context, seg *segmentation.ContactSegment) error {
	conditions, err := marshalConditions(seg.Conditions)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE contact_segments
		SET name = $1, description = $2, conditions = $3, is_active = $4,
			is_auto_update = $5, updated_at = NOW()
		WHERE id = $6
	`, seg.Name, seg.Description, conditions, seg.IsActive, seg.IsAutoUpdate, seg.ID)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return segmentation.ErrSegmentNotFound
	}
	return nil
}

func (r *SegmentRepo) Delete(ctx context.Context, segmentID uuid.UUID) error {
	// Membership rows go with the segment via ON DELETE CASCADE.
	res, err := r.db.ExecContext(ctx, `DELETE FROM contact_segments WHERE id = $1`, segmentID)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return segmentation.ErrSegmentNotFound
	}
	return nil
}

func (r *SegmentRepo) List(ctx context.Context, ownerID uuid.UUID) ([]*segmentation.ContactSegment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, description, conditions, is_active,
			is_auto_update, contact_count, last_updated_at, created_at, updated_at
		FROM contact_segments
		WHERE owner_id = $1
		ORDER BY name
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []*segmentation.ContactSegment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (r *SegmentRepo) UpdateCount(ctx context.Context, segmentID uuid.UUID, count int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contact_segments
		SET contact_count = $1, last_updated_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`, count, segmentID)
	if err != nil {
		return fmt.Errorf("update segment count: %w", err)
	}
	return nil
}

func marshalConditions(g *segmentation.Group) (any, error) {
	if g == nil {
		return nil, nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal conditions: %w", err)
	}
	return b, nil
}

func scanSegment(row rowScanner) (*segmentation.ContactSegment, error) {
	var (
		seg         segmentation.ContactSegment
		description sql.NullString
		conditions  []byte
	)
	err := row.Scan(
		&seg.ID, &seg.OwnerID, &seg.Name, &description, &conditions,
		&seg.IsActive, &seg.IsAutoUpdate, &seg.ContactCount,
		&seg.LastUpdatedAt, &seg.CreatedAt, &seg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	seg.Description = description.String

	if len(conditions) > 0 {
		g := &segmentation.Group{}
		if err := json.Unmarshal(conditions, g); err != nil {
			return nil, fmt.Errorf("unmarshal conditions: %w", err)
		}
		seg.Conditions = g
	}
	return &seg, nil
}
