// Package services defines shared utilities consumed by the pipeline stages
// and the external capability clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, job kinds, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap and Details helpers that let the
//     orchestrator turn any capability failure into a consistent diagnostic.
//
// Use these helpers when wiring new stage logic so failure reporting stays
// uniform across the pipeline.
package services
