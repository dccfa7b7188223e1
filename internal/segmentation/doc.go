// Package segmentation implements dynamic contact segmentation: evaluating
// user-defined boolean condition trees against contact records and
// materializing the matching set as a persisted membership relation.
//
// The package splits into four layers:
//   - field resolution (fields.go): contact attribute or custom-field lookup
//   - operator evaluation (operators.go): the closed comparison operator set
//   - condition evaluation (evaluator.go): recursive AND/OR tree walking
//   - materialization (engine.go): full-population refresh, membership
//     replacement, and count maintenance, serialized per segment
//
// Downstream consumers (campaign sends, previews, analytics) read only the
// materialized membership rows; evaluation cost is paid at refresh time.
package segmentation
