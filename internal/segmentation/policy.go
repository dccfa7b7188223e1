package segmentation

import "encoding/json"

// Refresh trigger policy. Materialization is expensive relative to a
// metadata edit, so refreshes run only at the event points below; there
// is no background scheduler in this core.

// ShouldRefreshOnCreate reports whether a newly created segment gets an
// initial materialization.
func ShouldRefreshOnCreate(seg *ContactSegment) bool {
	return seg.IsAutoUpdate
}

// ShouldRefreshOnUpdate reports whether an update warrants
// re-materialization: only changes to the condition tree or the
// auto-update flag count. Renames and description edits never trigger.
func ShouldRefreshOnUpdate(prev, next *ContactSegment) bool {
	if prev.IsAutoUpdate != next.IsAutoUpdate {
		return true
	}
	return !conditionsEqual(prev.Conditions, next.Conditions)
}

// conditionsEqual compares two trees structurally via their canonical
// JSON encoding. nil and a present tree always differ.
func conditionsEqual(a, b *Group) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
