package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"vench/internal/api"
	"vench/internal/config"
	"vench/internal/jobs"
	"vench/internal/logging"
	"vench/internal/preflight"
	"vench/internal/stage"
	"vench/internal/workflow"
)

// Pool is the dispatcher surface the daemon drives.
type Pool interface {
	Start(ctx context.Context) error
	Stop()
	Submit(id int64) error
	Stats() workflow.Stats
}

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *jobs.Store
	pool   Pool
	stages []stage.Stage
	server *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies. The API server is
// created when paths.api_bind is set.
func New(cfg *config.Config, store *jobs.Store, pool Pool, svc *api.Service, stages []stage.Stage, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || pool == nil {
		return nil, errors.New("daemon requires config, store, and dispatcher")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		pool:     pool,
		stages:   stages,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if svc != nil {
		d.server = newAPIServer(cfg, d, svc, logger)
	}
	return d, nil
}

// Start acquires the daemon lock, starts the dispatcher (which recovers
// interrupted and pending jobs) and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vench daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.pool.Start(runCtx); err != nil {
		cancel()
		d.pool.Stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start dispatcher: %w", err)
	}
	if err := d.server.start(runCtx); err != nil {
		cancel()
		d.pool.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("vench daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops the API server, drains in-flight jobs and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.server.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pool.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("vench daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr reports the API listen address, or "" when the API is disabled or not
// yet started.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Status returns the current daemon status. checkLLM also pings the LLM
// endpoint.
func (d *Daemon) Status(ctx context.Context, checkLLM bool) api.Status {
	status := api.Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Dispatcher:   d.pool.Stats(),
		Checks:       preflight.RunAll(ctx, d.cfg, preflight.Options{LLM: checkLLM}),
	}
	if health, err := d.store.Health(ctx); err == nil {
		status.Jobs = health
	} else {
		d.logger.Warn("job health query failed", logging.Error(err))
	}
	status.Stages = make([]stage.Health, 0, len(d.stages))
	for _, st := range d.stages {
		status.Stages = append(status.Stages, st.HealthCheck(ctx))
	}
	return status
}
