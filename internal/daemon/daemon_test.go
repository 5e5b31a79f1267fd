package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"vench/internal/api"
	"vench/internal/config"
	"vench/internal/jobs"
	"vench/internal/logging"
	"vench/internal/stage"
	"vench/internal/testsupport"
	"vench/internal/workflow"
)

type recordingExecutor struct {
	mu  sync.Mutex
	ids []int64
}

func (e *recordingExecutor) Execute(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, id)
	return nil
}

func (e *recordingExecutor) executed() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.ids...)
}

type healthStage struct{ name string }

func (s healthStage) Name() string  { return s.name }
func (s healthStage) Label() string { return s.name }
func (s healthStage) Run(context.Context, stage.Snapshot) (jobs.Output, error) {
	return jobs.Output{}, nil
}
func (s healthStage) HealthCheck(context.Context) stage.Health {
	return stage.Unhealthy(s.name, "binary missing")
}

type testDaemon struct {
	cfg   *config.Config
	store *jobs.Store
	exec  *recordingExecutor
	d     *Daemon
}

func newTestDaemon(t *testing.T, cfg *config.Config) *testDaemon {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	exec := &recordingExecutor{}
	pool := workflow.NewDispatcher(cfg, exec, store, logging.NewNop())
	svc := api.NewService(cfg, store, pool, logging.NewNop())
	d, err := New(cfg, store, pool, svc, []stage.Stage{healthStage{name: "transcribe"}}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.Stop)
	return &testDaemon{cfg: cfg, store: store, exec: exec, d: d}
}

func TestDaemonStartStop(t *testing.T) {
	td := newTestDaemon(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := td.d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := td.d.Status(ctx, false)
	if !status.Running || !status.Dispatcher.Running {
		t.Fatalf("expected daemon to report running: %+v", status)
	}
	if len(status.Stages) != 1 || status.Stages[0].Ready {
		t.Fatalf("stage health = %+v", status.Stages)
	}
	if td.d.Addr() == "" {
		t.Fatal("api server not listening")
	}

	if err := td.d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	td.d.Stop()
	if status := td.d.Status(ctx, false); status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newTestDaemon(t, cfg)
	if err := first.d.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second := *cfg
	second.Paths.APIBind = ""
	other := newTestDaemon(t, &second)
	if err := other.d.Start(context.Background()); err == nil {
		t.Fatal("second instance acquired the lock")
	}
}

func TestDaemonStartRecoversPendingJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	td := newTestDaemon(t, cfg)
	pending := testsupport.NewDiaryJob(t, td.store, "queued.m4a")

	if err := td.d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(td.exec.executed()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := td.exec.executed(); len(got) != 1 || got[0] != pending.ID {
		t.Fatalf("executed = %v", got)
	}
}
