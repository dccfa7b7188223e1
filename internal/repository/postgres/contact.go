// Package postgres implements the segmentation store interfaces against
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/audience-engine/internal/domain"
)

// ContactRepo implements segmentation.ContactStore. It is strictly
// read-only; contact writes belong to the CRUD service that owns the
// table.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact reader.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `
	id, owner_id, email, first_name, last_name, company, job_title,
	location, website, custom_fields, tags, total_emails_opened,
	total_emails_clicked, engagement_score, is_active, subscription_date,
	unsubscribed_at, last_activity_at, created_at, updated_at`

func (r *ContactRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE owner_id = $1 ORDER BY created_at`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *ContactRepo) Get(ctx context.Context, ownerID, contactID uuid.UUID) (*domain.Contact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND owner_id = $2`,
		contactID, ownerID,
	)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*domain.Contact, error) {
	var (
		c            domain.Contact
		firstName    sql.NullString
		lastName     sql.NullString
		company      sql.NullString
		jobTitle     sql.NullString
		location     sql.NullString
		website      sql.NullString
		customFields []byte
	)
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Email, &firstName, &lastName, &company,
		&jobTitle, &location, &website, &customFields, pq.Array(&c.Tags),
		&c.TotalEmailsOpened, &c.TotalEmailsClicked, &c.EngagementScore,
		&c.IsActive, &c.SubscriptionDate, &c.UnsubscribedAt,
		&c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.FirstName = firstName.String
	c.LastName = lastName.String
	c.Company = company.String
	c.JobTitle = jobTitle.String
	c.Location = location.String
	c.Website = website.String

	if len(customFields) > 0 {
		if err := json.Unmarshal(customFields, &c.CustomFields); err != nil {
			// A corrupt custom-field document should not hide the whole
			// contact from segmentation; rules against it resolve absent.
			c.CustomFields = nil
		}
	}
	return &c, nil
}
