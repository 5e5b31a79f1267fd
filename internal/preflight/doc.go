// Package preflight provides readiness checks for the filesystem paths,
// external binaries and LLM endpoint vench depends on.
//
// The daemon runs RunAll at startup and logs failures without refusing to
// start; the status endpoint reuses the same checks so operators see the same
// answers the daemon saw.
package preflight
