// Package domain defines the shared business types for the audience engine.
//
// Types in this package are pure value objects with no behavior beyond
// pure helper methods. They are the shared language between the
// segmentation core, repositories, and HTTP handlers.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
package domain
