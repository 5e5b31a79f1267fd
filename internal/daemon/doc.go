// Package daemon coordinates the long-running vench process.
//
// It wires the job store, the dispatcher and the HTTP API into a single
// lifecycle with flock-based locking to prevent multiple instances. The
// daemon owns startup recovery (through the dispatcher), the HTTP surface
// external collaborators use to create and read jobs, and the status report
// that combines pool counters, job counts, stage health and preflight checks.
//
// Keep orchestration logic here: pipeline steps live in internal/pipeline and
// job execution in internal/workflow, while the daemon focuses on startup,
// shutdown and high level coordination.
package daemon
