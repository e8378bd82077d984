// Package store provides SQLite-backed storage for saved views.
//
// A view is a named v5 composite query saved from a source page (the
// explorer or dashboard that produced it). Views are de-duplicated per
// page by fingerprint: saving the same composite query twice on one page
// returns the existing view.
//
// # Ordering
//
// Listings are newest first, ordered by (created_at DESC, id DESC) and
// paginated by keyset on that pair. id breaks ties between views created in
// the same millisecond, so pages never overlap or skip rows while new views
// are saved.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// SQL is built with goqu using the sqlite3 dialect and prepared arguments.
package store
