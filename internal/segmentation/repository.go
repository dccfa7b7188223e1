package segmentation

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/domain"
)

// ContactStore is the engine's read-only view of the contact population.
// Contact CRUD lives outside this service.
type ContactStore interface {
	// ListByOwner returns every contact belonging to a tenant, active or
	// not. Segments may legitimately target inactive contacts, so no
	// implicit status filter is applied here.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Contact, error)

	// Get returns one contact scoped to its owner, or nil when absent.
	Get(ctx context.Context, ownerID, contactID uuid.UUID) (*domain.Contact, error)
}

// SegmentStore persists segment definitions and their cached counts.
type SegmentStore interface {
	Create(ctx context.Context, seg *ContactSegment) error

	// Get returns a segment by ID, or nil when absent.
	Get(ctx context.Context, segmentID uuid.UUID) (*ContactSegment, error)

	// Update persists name, description, conditions, and the two flags.
	Update(ctx context.Context, seg *ContactSegment) error

	// Delete removes the segment; membership rows cascade.
	Delete(ctx context.Context, segmentID uuid.UUID) error

	List(ctx context.Context, ownerID uuid.UUID) ([]*ContactSegment, error)

	// UpdateCount sets the cached contact count and stamps last_updated_at.
	UpdateCount(ctx context.Context, segmentID uuid.UUID, count int) error
}

// MembershipStore persists the materialized contact/segment relation.
type MembershipStore interface {
	// Replace atomically swaps the full membership of a segment for the
	// given contact set. An empty set is valid and leaves zero rows.
	// Implementations must not leave a partial state behind on failure.
	Replace(ctx context.Context, segmentID uuid.UUID, contactIDs []uuid.UUID) error

	// Add inserts one membership row; a duplicate pair is a no-op.
	Add(ctx context.Context, segmentID, contactID uuid.UUID) error

	// Remove deletes one membership row if present.
	Remove(ctx context.Context, segmentID, contactID uuid.UUID) error

	// Count returns the number of membership rows for a segment.
	Count(ctx context.Context, segmentID uuid.UUID) (int, error)

	// ListContactIDs pages through a segment's member contact IDs in
	// insertion order.
	ListContactIDs(ctx context.Context, segmentID uuid.UUID, limit, offset int) ([]uuid.UUID, error)
}
