// Package store persists discovered marketplace items in SQLite and exposes
// the idempotent writes and flag transitions the pipeline stages coordinate
// through.
//
// Every mutation is either an insert-if-absent, a position-aware upsert, or a
// guarded flag set (has_artifact, delivered_at, suppressed) that only ever
// moves forward. Stages never talk to each other directly; the store is the
// only shared state, so any stage may crash and restart without corrupting
// another stage's progress.
//
// Schema changes bump schemaVersion in schema.go and update schema.sql.
package store
