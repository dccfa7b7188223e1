package segmentation

import "errors"

// Sentinel errors for the segmentation engine.
var (
	ErrSegmentNotFound   = errors.New("segment not found")
	ErrContactNotFound   = errors.New("contact not found")
	ErrOwnerMismatch     = errors.New("contact and segment belong to different owners")
	ErrRefreshInProgress = errors.New("a refresh for this segment is already running")
)
