package domain

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a single recipient record owned by exactly one tenant.
// The segmentation core treats contacts as read-only input; creation and
// mutation happen in the contact CRUD layer outside this service.
type Contact struct {
	ID      uuid.UUID `json:"id" db:"id"`
	OwnerID uuid.UUID `json:"owner_id" db:"owner_id"`

	Email     string `json:"email" db:"email"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Company   string `json:"company" db:"company"`
	JobTitle  string `json:"job_title" db:"job_title"`
	Location  string `json:"location" db:"location"`
	Website   string `json:"website" db:"website"`

	// CustomFields is an open key/value map (jsonb). Segment rules may
	// reference any key in it by name.
	CustomFields map[string]any `json:"custom_fields" db:"custom_fields"`
	Tags         []string       `json:"tags" db:"tags"`

	TotalEmailsOpened  int     `json:"total_emails_opened" db:"total_emails_opened"`
	TotalEmailsClicked int     `json:"total_emails_clicked" db:"total_emails_clicked"`
	EngagementScore    float64 `json:"engagement_score" db:"engagement_score"`

	IsActive         bool       `json:"is_active" db:"is_active"`
	SubscriptionDate *time.Time `json:"subscription_date" db:"subscription_date"`
	UnsubscribedAt   *time.Time `json:"unsubscribed_at" db:"unsubscribed_at"`
	LastActivityAt   *time.Time `json:"last_activity_at" db:"last_activity_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName joins first and last name, tolerating either being empty.
func (c *Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}
