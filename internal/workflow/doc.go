// Package workflow runs analysis jobs through their pipeline definitions.
//
// The Orchestrator owns the job state machine. It claims a pending job,
// evaluates guards, runs each stage through stageexec, persists the merged
// output after every step and commits exactly one terminal status. A job that
// is not pending when execution starts is left untouched, which makes
// duplicate dispatch harmless.
//
// The Dispatcher is the worker pool in front of the Orchestrator. Submit
// returns immediately; a fixed number of workers drain the queue and every
// execution opens its own storage session. On Start the dispatcher fails jobs
// interrupted by a previous process and resubmits jobs that were still
// pending.
//
// Heartbeats refresh last_heartbeat while a stage runs so pollers can tell a
// slow stage from a dead worker.
package workflow
