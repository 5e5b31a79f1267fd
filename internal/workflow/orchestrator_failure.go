package workflow

import (
	"context"
	"fmt"
	"strings"

	"vench/internal/jobs"
	"vench/internal/logging"
	"vench/internal/notifications"
	"vench/internal/services"
	"vench/internal/stage"
)

// Progress messages for faults. Capability details go to logs and
// error_detail, never to the progress message.
const (
	MessageStorageFault = "Processing stopped after a storage error"
)

// halt commits a declared short-circuit with whatever output exists so far.
func (e *execution) halt(ctx context.Context, stageName string, h *stage.Halt) {
	out := e.snap.Output
	outcome := jobs.Outcome{
		Status:          h.Status,
		ProgressMessage: h.Message,
		Output:          &out,
	}
	if h.Status == jobs.StatusFailed {
		outcome.ErrorDetail = errorDetail(services.Wrap(services.ErrInputDefect, stageName, h.Reason, h.Message, nil))
	}
	if !e.finish(ctx, outcome) {
		return
	}

	event := "job_short_circuit"
	if h.Status == jobs.StatusSkipped {
		event = "job_skipped"
	}
	e.logger.Info("job short-circuited",
		logging.String(logging.FieldEventType, event),
		logging.String(logging.FieldStage, stageName),
		logging.String("resolved_status", string(h.Status)),
		logging.String("reason", h.Reason),
		logging.String("progress_message", h.Message),
	)
	if h.Status == jobs.StatusFailed {
		e.o.publish(ctx, notifications.EventJobFailed, notifications.Payload{
			"jobID":   e.id,
			"kind":    string(e.snap.Kind),
			"message": h.Message,
		})
	}
}

// stageFailed commits FAILED after a capability fault. Output persisted by
// earlier steps is kept.
func (e *execution) stageFailed(ctx context.Context, st stage.Stage, err error) {
	e.fail(ctx, st.Name(), fmt.Sprintf("%s failed", st.Label()), errorDetail(err), err)
}

func (e *execution) fail(ctx context.Context, stageName, message, detail string, cause error) {
	out := e.snap.Output
	if !e.finish(ctx, jobs.Outcome{
		Status:          jobs.StatusFailed,
		ProgressMessage: message,
		ErrorDetail:     detail,
		Output:          &out,
	}) {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldStage, stageName),
		logging.String("resolved_status", string(jobs.StatusFailed)),
		logging.String("error_detail", detail),
		logging.Alert("job_failed"),
	}
	if cause != nil {
		attrs = append(attrs, logging.String(logging.FieldErrorKind, string(services.Kind(cause))))
	}
	logging.ErrorWithContext(e.logger, "job failed", "job_failed", attrs...)

	payloadErr := any(detail)
	if cause != nil {
		payloadErr = cause
	}
	e.o.publish(ctx, notifications.EventJobFailed, notifications.Payload{
		"jobID": e.id,
		"kind":  string(e.snap.Kind),
		"error": payloadErr,
	})
}

// finish commits outcome and reports whether it was persisted. Storage
// faults are routed to storageFault.
func (e *execution) finish(ctx context.Context, outcome jobs.Outcome) bool {
	err := e.sess.Finish(ctx, e.id, outcome)
	if err == nil {
		return true
	}
	if jobs.IsNotProcessing(err) {
		e.logger.Warn("job left processing before it could finish",
			logging.String(logging.FieldEventType, "persist_failed"),
			logging.String("resolved_status", string(outcome.Status)),
			logging.Error(err),
		)
		return false
	}
	e.storageFault(ctx, "finish", err)
	return false
}

// storageFault makes one attempt to mark the job FAILED and otherwise logs
// and swallows the error so the worker keeps running.
func (e *execution) storageFault(ctx context.Context, operation string, err error) {
	logging.ErrorWithContext(e.logger, "job persistence failed", "persist_failed",
		logging.String("operation", operation),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check database access and disk space"),
	)
	retryErr := e.sess.Finish(ctx, e.id, jobs.Outcome{
		Status:          jobs.StatusFailed,
		ProgressMessage: MessageStorageFault,
		ErrorDetail:     fmt.Sprintf("storage: %s: %v", operation, err),
	})
	if retryErr == nil {
		e.o.publish(ctx, notifications.EventJobFailed, notifications.Payload{
			"jobID": e.id,
			"kind":  string(e.snap.Kind),
			"error": err,
		})
		return
	}
	logging.ErrorWithContext(e.logger, "could not mark job failed after storage error", "persist_failed",
		logging.String("operation", operation),
		logging.Error(retryErr),
		logging.Alert("job_stuck_processing"),
		logging.String(logging.FieldErrorHint, "job will be failed on next daemon start"),
	)
}

// errorDetail renders the diagnostic stored on a failed job.
func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	d := services.Details(err)
	parts := make([]string, 0, 4)
	parts = append(parts, string(d.Kind))
	if d.Stage != "" {
		parts = append(parts, d.Stage)
	}
	if d.Operation != "" {
		parts = append(parts, d.Operation)
	}
	msg := d.Message
	if d.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, d.Cause)
	}
	parts = append(parts, msg)
	return strings.Join(parts, ": ")
}
