// Package stage defines the contract between pipeline steps and the workflow
// orchestrator.
//
// A Stage wraps exactly one external capability. It receives a read-only
// Snapshot of the job (input plus output accumulated so far) and returns the
// partial Output it owns, or an error. Guards are short-circuit predicates the
// orchestrator evaluates against the snapshot before a step runs. A stage that
// discovers a declared short-circuit while running returns a *Halt instead of
// a plain error.
package stage
