package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"vench/internal/jobs"
	"vench/internal/logging"
	"vench/internal/services"
	"vench/internal/stage"
)

// Options controls a single stage invocation.
type Options struct {
	Logger   *slog.Logger
	Stage    stage.Stage
	Snapshot stage.Snapshot
	// Timeout bounds the stage; zero means no limit.
	Timeout time.Duration
}

// Run invokes one stage with logging, an optional deadline and panic
// recovery. The returned error is either a *stage.Halt, a timeout tagged with
// services.ErrTimeout, or the stage's own failure.
func Run(ctx context.Context, opts Options) (out jobs.Output, err error) {
	if opts.Stage == nil {
		return jobs.Output{}, errors.New("stage unavailable")
	}
	name := opts.Stage.Name()
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	stageCtx := services.WithStage(ctx, name)
	stageLogger := logging.WithContext(stageCtx, logger)
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("label", opts.Stage.Label()),
	)

	defer func() {
		if r := recover(); r != nil {
			out = jobs.Output{}
			err = services.Wrap(services.ErrExternalTool, name, "run", "Stage crashed",
				fmt.Errorf("panic: %v", r))
			stageLogger.Error("stage panicked",
				logging.String(logging.FieldEventType, "stage_failure"),
				logging.Alert("stage_panic"),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
		}
	}()

	out, err = opts.Stage.Run(stageCtx, opts.Snapshot)
	elapsed := time.Since(start)

	if err == nil {
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("stage_duration", elapsed),
		)
		return out, nil
	}

	if halt, ok := stage.AsHalt(err); ok {
		stageLogger.Info("stage halted",
			logging.String(logging.FieldEventType, "job_short_circuit"),
			logging.String("resolved_status", string(halt.Status)),
			logging.String("reason", halt.Reason),
			logging.Duration("stage_duration", elapsed),
		)
		return jobs.Output{}, halt
	}

	if opts.Timeout > 0 && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		err = services.Wrap(services.ErrTimeout, name, "run",
			fmt.Sprintf("Stage exceeded %s", opts.Timeout), err)
	}

	details := services.Details(err)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String("error_message", details.Message),
		logging.Duration("stage_duration", elapsed),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(err))
	}
	stageLogger.Error("stage failed", logging.Args(attrs...)...)
	return jobs.Output{}, err
}
