package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"vench/internal/config"
	"vench/internal/logging"
)

// ErrNotRunning is returned by Submit before Start or after Stop.
var ErrNotRunning = errors.New("dispatcher not running")

// Executor runs one job to completion.
type Executor interface {
	Execute(ctx context.Context, id int64) error
}

// RecoveryStore supplies the startup recovery queries.
type RecoveryStore interface {
	FailInterrupted(ctx context.Context) (int64, error)
	PendingIDs(ctx context.Context) ([]int64, error)
}

// Dispatcher schedules executions on a bounded worker pool.
type Dispatcher struct {
	exec     Executor
	recovery RecoveryStore
	logger   *slog.Logger
	workers  int

	queue chan int64

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	parked  sync.WaitGroup

	inFlight  atomic.Int64
	submitted atomic.Int64
	executed  atomic.Int64
	errored   atomic.Int64
}

// NewDispatcher sizes the pool from the [workflow] section.
func NewDispatcher(cfg *config.Config, exec Executor, recovery RecoveryStore, logger *slog.Logger) *Dispatcher {
	workers, queueSize := 1, 1
	if cfg != nil {
		workers = max(cfg.Workflow.Workers, 1)
		queueSize = max(cfg.Workflow.QueueSize, 1)
	}
	return &Dispatcher{
		exec:     exec,
		recovery: recovery,
		logger:   logging.NewComponentLogger(logger, "dispatcher"),
		workers:  workers,
		queue:    make(chan int64, queueSize),
	}
}

// Start launches the workers, fails jobs left processing by a previous
// process and resubmits pending jobs.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return errors.New("dispatcher already running")
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running = true
	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.worker(d.ctx, i)
	}
	d.mu.Unlock()

	d.logger.Info("dispatcher started", logging.Int("workers", d.workers), logging.Int("queue_size", cap(d.queue)))
	return d.recoverJobs(ctx)
}

func (d *Dispatcher) recoverJobs(ctx context.Context) error {
	if d.recovery == nil {
		return nil
	}
	failed, err := d.recovery.FailInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("fail interrupted jobs: %w", err)
	}
	if failed > 0 {
		d.logger.Warn("failed jobs interrupted by restart",
			logging.Int64("count", failed),
			logging.String(logging.FieldEventType, "recovery_interrupted"),
		)
	}
	ids, err := d.recovery.PendingIDs(ctx)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}
	for _, id := range ids {
		if err := d.Submit(id); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		d.logger.Info("resubmitted pending jobs",
			logging.Int("count", len(ids)),
			logging.String(logging.FieldEventType, "recovery_pending"),
		)
	}
	return nil
}

// Submit schedules one execution of id and never blocks. When the buffer is
// full the submission waits in a parked goroutine until a slot frees up or
// the dispatcher stops; a job dropped at shutdown stays pending and is
// resubmitted on the next Start.
func (d *Dispatcher) Submit(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return ErrNotRunning
	}
	d.submitted.Add(1)
	select {
	case d.queue <- id:
		return nil
	default:
	}
	ctx := d.ctx
	d.parked.Add(1)
	go func() {
		defer d.parked.Done()
		select {
		case d.queue <- id:
		case <-ctx.Done():
		}
	}()
	return nil
}

func (d *Dispatcher) worker(ctx context.Context, n int) {
	defer d.wg.Done()
	logger := d.logger.With(logging.Int("worker", n))
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.queue:
			d.run(ctx, logger, id)
		}
	}
}

// run executes one job. Shutdown does not cancel an execution in flight, so
// the job still reaches a terminal state.
func (d *Dispatcher) run(ctx context.Context, logger *slog.Logger, id int64) {
	d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			d.errored.Add(1)
			logger.Error("job execution panicked",
				logging.Int64(logging.FieldJobID, id),
				logging.Alert("dispatcher_panic"),
				logging.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	err := d.exec.Execute(context.WithoutCancel(ctx), id)
	d.executed.Add(1)
	if err != nil {
		d.errored.Add(1)
		logger.Error("job execution failed",
			logging.Int64(logging.FieldJobID, id),
			logging.Error(err),
			logging.String(logging.FieldEventType, "dispatch_failed"),
		)
	}
}

// Stop stops taking work and waits for in-flight executions to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.parked.Wait()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Running    bool  `json:"running"`
	Workers    int   `json:"workers"`
	QueueDepth int   `json:"queue_depth"`
	InFlight   int64 `json:"in_flight"`
	Submitted  int64 `json:"submitted"`
	Executed   int64 `json:"executed"`
	Errored    int64 `json:"errored"`
}

// Stats reports the current pool counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	return Stats{
		Running:    running,
		Workers:    d.workers,
		QueueDepth: len(d.queue),
		InFlight:   d.inFlight.Load(),
		Submitted:  d.submitted.Load(),
		Executed:   d.executed.Load(),
		Errored:    d.errored.Load(),
	}
}
