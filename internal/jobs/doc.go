// Package jobs persists analysis job records in SQLite and exposes the
// lifecycle transitions the workflow orchestrator relies on.
//
// A Job moves pending -> processing -> {completed, failed, skipped}. The
// Store owns creation, reads, listings, aggregations, retries, and restart
// recovery. Orchestrator executions never share a connection: each one opens a
// Session bound to its own *sql.Conn and closes it on every exit path.
//
// Terminal rows are immutable. Every write that could touch a terminal row is
// guarded by a status predicate in SQL, so duplicate dispatch cannot rewrite a
// finished record. Keyword rows for a feedback job are replaced wholesale in
// the same transaction that commits its terminal status.
//
// Schema changes bump schemaVersion in schema.go; existing databases must be
// removed to adopt the new schema.
package jobs
