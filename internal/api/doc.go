// Package api is the ingestion and query surface shared by the HTTP server
// and the CLI client.
//
// Service creates jobs (storing uploaded audio under the job's public id),
// hands them to the dispatcher and answers read-only queries: single jobs,
// filtered listings and the emotion and keyword statistics. Wire types use
// snake_case JSON to match the persisted job record.
//
// Errors are classified with ErrInvalidRequest, ErrConflict and
// jobs.ErrNotFound so transports can map them to status codes without
// string matching.
package api
