package segmentation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/domain"
	"github.com/ignite/audience-engine/internal/pkg/distlock"
	"github.com/ignite/audience-engine/internal/pkg/logger"
)

// DefaultChunkSize is how many contacts are evaluated between context
// cancellation checks during a refresh.
const DefaultChunkSize = 500

// LockFunc builds a distributed lock for one segment key. When unset the
// engine serializes same-segment refreshes in-process only, which is
// sufficient for a single-instance deployment.
type LockFunc func(key string) distlock.Lock

// Engine materializes segment membership. One Refresh call evaluates the
// owner's whole contact population against the segment's condition tree
// and swaps the membership rows for the result.
type Engine struct {
	segments  SegmentStore
	contacts  ContactStore
	members   MembershipStore
	lockFor   LockFunc
	chunkSize int

	mu    sync.Mutex
	local map[uuid.UUID]*sync.Mutex
}

// NewEngine creates an engine over the given stores.
func NewEngine(segments SegmentStore, contacts ContactStore, members MembershipStore) *Engine {
	return &Engine{
		segments:  segments,
		contacts:  contacts,
		members:   members,
		chunkSize: DefaultChunkSize,
		local:     make(map[uuid.UUID]*sync.Mutex),
	}
}

// UseDistributedLocks makes Refresh serialize same-segment runs across
// processes. The in-process lock stays on as the first line of defense.
func (e *Engine) UseDistributedLocks(fn LockFunc) { e.lockFor = fn }

// SetChunkSize overrides the cancellation-check granularity of Refresh.
func (e *Engine) SetChunkSize(n int) {
	if n > 0 {
		e.chunkSize = n
	}
}

// EvaluateSegment reports whether one contact satisfies a condition tree.
// Used for live previews; nothing is persisted.
func (e *Engine) EvaluateSegment(conditions *Group, c *domain.Contact) bool {
	return NewEvaluator(nil).Evaluate(conditions, c)
}

// Refresh re-materializes a segment's membership. Idempotent: two
// consecutive runs with no contact changes yield the same membership set
// and count. Returns ErrRefreshInProgress when another refresh of the
// same segment holds the lock.
func (e *Engine) Refresh(ctx context.Context, segmentID uuid.UUID) error {
	release, err := e.acquire(ctx, segmentID)
	if err != nil {
		return err
	}
	defer release()

	started := time.Now()

	seg, err := e.segments.Get(ctx, segmentID)
	if err != nil {
		return fmt.Errorf("load segment: %w", err)
	}
	if seg == nil {
		return ErrSegmentNotFound
	}
	if seg.Conditions == nil {
		// Never configured with a filter; leave any manually managed
		// membership alone.
		logger.Debug("segment has no conditions, skipping refresh", "segment_id", segmentID.String())
		return nil
	}

	candidates, err := e.contacts.ListByOwner(ctx, seg.OwnerID)
	if err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}

	evalErrors := 0
	eval := NewEvaluator(func(c *domain.Contact, ruleErr error) {
		evalErrors++
		logger.Warn("contact evaluation error",
			"segment_id", segmentID.String(),
			"contact_id", c.ID.String(),
			"error", ruleErr.Error())
	})

	matched := make([]uuid.UUID, 0, len(candidates))
	for start := 0; start < len(candidates); start += e.chunkSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("refresh canceled: %w", err)
		}
		end := start + e.chunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		for i := start; i < end; i++ {
			if eval.Evaluate(seg.Conditions, &candidates[i]) {
				matched = append(matched, candidates[i].ID)
			}
		}
	}

	if err := e.members.Replace(ctx, segmentID, matched); err != nil {
		return fmt.Errorf("replace membership: %w", err)
	}
	if err := e.segments.UpdateCount(ctx, segmentID, len(matched)); err != nil {
		return fmt.Errorf("update segment count: %w", err)
	}

	logger.Info("segment refreshed",
		"segment_id", segmentID.String(),
		"candidates", len(candidates),
		"matched", len(matched),
		"eval_errors", evalErrors,
		"duration_ms", time.Since(started).Milliseconds())
	return nil
}

// AddContact manually places a contact in a segment, bypassing the rule
// engine. The cached count is recomputed from the membership table, not
// from conditions; the next full Refresh reconciles the override.
func (e *Engine) AddContact(ctx context.Context, segmentID, contactID uuid.UUID) error {
	seg, err := e.segments.Get(ctx, segmentID)
	if err != nil {
		return fmt.Errorf("load segment: %w", err)
	}
	if seg == nil {
		return ErrSegmentNotFound
	}
	contact, err := e.contacts.Get(ctx, seg.OwnerID, contactID)
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}
	if contact == nil {
		return ErrContactNotFound
	}

	if err := e.members.Add(ctx, segmentID, contactID); err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return e.recount(ctx, segmentID)
}

// RemoveContact manually removes a contact from a segment. Like
// AddContact this is an override outside the rule engine.
func (e *Engine) RemoveContact(ctx context.Context, segmentID, contactID uuid.UUID) error {
	seg, err := e.segments.Get(ctx, segmentID)
	if err != nil {
		return fmt.Errorf("load segment: %w", err)
	}
	if seg == nil {
		return ErrSegmentNotFound
	}

	if err := e.members.Remove(ctx, segmentID, contactID); err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return e.recount(ctx, segmentID)
}

func (e *Engine) recount(ctx context.Context, segmentID uuid.UUID) error {
	n, err := e.members.Count(ctx, segmentID)
	if err != nil {
		return fmt.Errorf("count membership: %w", err)
	}
	if err := e.segments.UpdateCount(ctx, segmentID, n); err != nil {
		return fmt.Errorf("update segment count: %w", err)
	}
	return nil
}

// acquire takes the in-process lock for a segment and, when configured,
// the distributed one on top. Both are non-blocking: an already-held lock
// surfaces as ErrRefreshInProgress rather than queuing refreshes.
func (e *Engine) acquire(ctx context.Context, segmentID uuid.UUID) (func(), error) {
	e.mu.Lock()
	lm, ok := e.local[segmentID]
	if !ok {
		lm = &sync.Mutex{}
		e.local[segmentID] = lm
	}
	e.mu.Unlock()

	if !lm.TryLock() {
		return nil, ErrRefreshInProgress
	}

	if e.lockFor == nil {
		return lm.Unlock, nil
	}

	dl := e.lockFor(segmentID.String())
	held, err := dl.TryAcquire(ctx)
	if err != nil {
		lm.Unlock()
		return nil, fmt.Errorf("acquire segment lock: %w", err)
	}
	if !held {
		lm.Unlock()
		return nil, ErrRefreshInProgress
	}
	return func() {
		if err := dl.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release segment lock", "segment_id", segmentID.String(), "error", err.Error())
		}
		lm.Unlock()
	}, nil
}
