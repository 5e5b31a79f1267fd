package stageexec

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vench/internal/jobs"
	"vench/internal/services"
	"vench/internal/stage"
)

type funcStage struct {
	run func(ctx context.Context, snap stage.Snapshot) (jobs.Output, error)
}

func (f funcStage) Name() string  { return "sample" }
func (f funcStage) Label() string { return "Sampling" }
func (f funcStage) Run(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
	return f.run(ctx, snap)
}
func (f funcStage) HealthCheck(context.Context) stage.Health { return stage.Healthy("sample") }

func TestRunReturnsStageOutput(t *testing.T) {
	st := funcStage{run: func(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
		if name, _ := services.StageFromContext(ctx); name != "sample" {
			t.Errorf("stage missing from context")
		}
		return jobs.Output{Transcript: snap.Output.NormalizedAudio}, nil
	}}
	out, err := Run(context.Background(), Options{
		Stage:    st,
		Snapshot: stage.Snapshot{Output: jobs.Output{NormalizedAudio: "a.wav"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Transcript != "a.wav" {
		t.Fatalf("output = %+v", out)
	}
}

func TestRunPassesHaltThrough(t *testing.T) {
	st := funcStage{run: func(context.Context, stage.Snapshot) (jobs.Output, error) {
		return jobs.Output{Keywords: []string{"x"}}, stage.Skip("no_keywords", "nothing")
	}}
	out, err := Run(context.Background(), Options{Stage: st})
	halt, ok := stage.AsHalt(err)
	if !ok || halt.Reason != "no_keywords" {
		t.Fatalf("err = %v", err)
	}
	if !out.IsZero() {
		t.Fatalf("halted stage leaked output: %+v", out)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	st := funcStage{run: func(context.Context, stage.Snapshot) (jobs.Output, error) {
		panic("boom")
	}}
	_, err := Run(context.Background(), Options{Stage: st})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("panic value missing from %v", err)
	}
}

func TestRunTagsDeadlineAsTimeout(t *testing.T) {
	st := funcStage{run: func(ctx context.Context, _ stage.Snapshot) (jobs.Output, error) {
		<-ctx.Done()
		return jobs.Output{}, ctx.Err()
	}}
	_, err := Run(context.Background(), Options{Stage: st, Timeout: 20 * time.Millisecond})
	if services.Kind(err) != services.KindTimeout {
		t.Fatalf("kind = %s (%v)", services.Kind(err), err)
	}
	if d := services.Details(err); d.Stage != "sample" {
		t.Fatalf("details = %+v", d)
	}
}

func TestRunKeepsStageErrorKind(t *testing.T) {
	cause := services.Wrap(services.ErrValidation, "sample", "check", "bad input", nil)
	st := funcStage{run: func(context.Context, stage.Snapshot) (jobs.Output, error) {
		return jobs.Output{}, cause
	}}
	_, err := Run(context.Background(), Options{Stage: st, Timeout: time.Second})
	if !errors.Is(err, cause) || services.Kind(err) != services.KindValidation {
		t.Fatalf("err = %v", err)
	}
}

func TestRunWithoutStage(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for missing stage")
	}
}
