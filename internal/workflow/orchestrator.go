package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vench/internal/config"
	"vench/internal/jobs"
	"vench/internal/logging"
	"vench/internal/notifications"
	"vench/internal/services"
	"vench/internal/stage"
	"vench/internal/stageexec"
)

// Definitions resolves the pipeline for a job kind.
type Definitions interface {
	Lookup(kind jobs.Kind) (stage.Definition, bool)
}

// Orchestrator executes pipeline definitions against job records.
type Orchestrator struct {
	defs           Definitions
	open           SessionOpener
	heartbeat      *Heartbeat
	notifier       notifications.Service
	logger         *slog.Logger
	stageTimeout   time.Duration
	levelOverrides map[string]string
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSessionOpener replaces the store-backed session source.
func WithSessionOpener(open SessionOpener) OrchestratorOption {
	return func(o *Orchestrator) {
		if open != nil {
			o.open = open
		}
	}
}

// WithNotifier sets the terminal outcome notifier.
func WithNotifier(n notifications.Service) OrchestratorOption {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithStageTimeout overrides the configured per-stage timeout.
func WithStageTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.stageTimeout = d
	}
}

// NewOrchestrator wires an orchestrator to the store and definitions.
func NewOrchestrator(cfg *config.Config, store *jobs.Store, defs Definitions, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		defs:     defs,
		open:     storeSessions(store),
		notifier: notifications.NewService(cfg),
		logger:   logging.NewComponentLogger(logger, "workflow"),
	}
	if cfg != nil {
		o.stageTimeout = cfg.StageTimeout()
		o.levelOverrides = cfg.Logging.StageOverrides
		if store != nil {
			o.heartbeat = NewHeartbeat(store, logger, cfg.HeartbeatInterval())
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs job id to a terminal state. A job that is not pending is left
// untouched and Execute returns nil. Once the job is claimed every failure,
// including storage faults, is handled here and nil is returned; errors are
// only returned when the job could not be read or claimed.
func (o *Orchestrator) Execute(ctx context.Context, id int64) error {
	ctx = services.WithJobID(ctx, id)
	logger := logging.WithContext(ctx, o.logger)

	sess, err := o.open(ctx)
	if err != nil {
		logging.ErrorWithContext(logger, "open job session failed", "persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
		return fmt.Errorf("open session for job %d: %w", id, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("close job session failed", logging.Error(cerr))
		}
	}()

	job, err := sess.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load job %d: %w", id, err)
	}
	if job.Status != jobs.StatusPending {
		logger.Info("job not pending; execution skipped",
			logging.String(logging.FieldEventType, "job_noop"),
			logging.String("status", string(job.Status)),
		)
		return nil
	}
	claimed, err := sess.Claim(ctx, id)
	if err != nil {
		return fmt.Errorf("claim job %d: %w", id, err)
	}
	if !claimed {
		logger.Info("job claimed elsewhere; execution skipped",
			logging.String(logging.FieldEventType, "job_noop"),
		)
		return nil
	}

	ctx = services.WithJobKind(ctx, string(job.Kind))
	run := &execution{
		o:      o,
		sess:   sess,
		id:     id,
		snap:   stage.SnapshotOf(job),
		logger: logging.WithContext(ctx, o.logger),
	}
	run.execute(ctx)
	return nil
}

// execution is the per-job state of one Execute call.
type execution struct {
	o      *Orchestrator
	sess   JobSession
	id     int64
	snap   stage.Snapshot
	logger *slog.Logger
	start  time.Time
}

func (e *execution) execute(ctx context.Context) {
	e.start = time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("orchestrator panicked",
				logging.String(logging.FieldEventType, "stage_failure"),
				logging.Alert("orchestrator_panic"),
				logging.String("panic", fmt.Sprint(r)),
			)
			e.fail(ctx, "", "Analysis failed", fmt.Sprintf("internal error: %v", r), nil)
		}
	}()

	def, ok := e.o.defs.Lookup(e.snap.Kind)
	if !ok {
		e.fail(ctx, "", "Analysis failed", fmt.Sprintf("no pipeline for kind %q", e.snap.Kind), nil)
		return
	}

	if halt := def.EntryHalt(e.snap); halt != nil {
		e.halt(ctx, "", halt)
		return
	}

	for _, step := range def.Steps {
		st := step.Stage
		if halt := step.Guard.Evaluate(e.snap); halt != nil {
			e.halt(ctx, st.Name(), halt)
			return
		}
		if err := e.sess.SetProgress(ctx, e.id, st.Label()); err != nil {
			e.storageFault(ctx, "write progress", err)
			return
		}

		partial, err := e.runStage(ctx, st)
		if err != nil {
			if halt, isHalt := stage.AsHalt(err); isHalt {
				e.halt(ctx, st.Name(), halt)
				return
			}
			e.stageFailed(ctx, st, err)
			return
		}

		e.snap.Output.Merge(partial)
		if err := e.sess.SaveOutput(ctx, e.id, e.snap.Output); err != nil {
			e.storageFault(ctx, "save output", err)
			return
		}
	}

	out := e.snap.Output
	outcome := jobs.Outcome{
		Status:          jobs.StatusCompleted,
		ProgressMessage: def.CompletionMessage,
		Output:          &out,
	}
	if def.Keywords != nil {
		outcome.Keywords = def.Keywords(out)
	}
	if !e.finish(ctx, outcome) {
		return
	}
	e.logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.Duration("job_duration", time.Since(e.start)),
	)
	e.o.publish(ctx, notifications.EventJobCompleted, notifications.Payload{
		"jobID": e.id,
		"kind":  string(e.snap.Kind),
		"title": out.Title,
	})
}

func (e *execution) runStage(ctx context.Context, st stage.Stage) (jobs.Output, error) {
	stop := e.o.heartbeat.Start(ctx, e.id)
	defer stop()
	return stageexec.Run(ctx, stageexec.Options{
		Logger:   logging.ForStage(e.logger, e.o.levelOverrides, st.Name()),
		Stage:    st,
		Snapshot: e.snap,
		Timeout:  e.o.stageTimeout,
	})
}

func (o *Orchestrator) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		logging.WithContext(ctx, o.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
