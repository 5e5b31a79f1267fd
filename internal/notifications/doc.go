// Package notifications pushes operator alerts for terminal job outcomes.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Callers depend only
// on the Service interface and an enumerated Event, so the workflow never
// builds HTTP requests itself. Callers that submitted a job still observe it by
// polling; this channel is for whoever runs the daemon.
package notifications
