package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vench/internal/logging"
)

// HeartbeatStore refreshes a job's liveness timestamp.
type HeartbeatStore interface {
	UpdateHeartbeat(ctx context.Context, id int64) error
}

// Heartbeat refreshes last_heartbeat on a fixed interval while a stage runs.
type Heartbeat struct {
	store    HeartbeatStore
	logger   *slog.Logger
	interval time.Duration
}

// NewHeartbeat returns nil when interval is not positive, which disables
// heartbeats.
func NewHeartbeat(store HeartbeatStore, logger *slog.Logger, interval time.Duration) *Heartbeat {
	if store == nil || interval <= 0 {
		return nil
	}
	return &Heartbeat{store: store, logger: logging.NewComponentLogger(logger, "workflow-heartbeat"), interval: interval}
}

// Start launches the loop for jobID and returns a stop function that waits
// for it to exit.
func (h *Heartbeat) Start(ctx context.Context, jobID int64) func() {
	if h == nil {
		return func() {}
	}
	hbCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go h.loop(hbCtx, &wg, jobID)
	return func() {
		cancel()
		wg.Wait()
	}
}

func (h *Heartbeat) loop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
