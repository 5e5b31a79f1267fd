package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vench/internal/config"
	"vench/internal/emotion"
	"vench/internal/jobs"
	"vench/internal/keywords"
	"vench/internal/logging"
	"vench/internal/notifications"
	"vench/internal/pipeline"
	"vench/internal/stage"
	"vench/internal/testsupport"
	"vench/internal/workflow"
)

type stubStage struct {
	name  string
	label string
	run   func(ctx context.Context, snap stage.Snapshot) (jobs.Output, error)
	calls atomic.Int32
}

func newStubStage(name, label string, run func(context.Context, stage.Snapshot) (jobs.Output, error)) *stubStage {
	return &stubStage{name: name, label: label, run: run}
}

func (s *stubStage) Name() string  { return s.name }
func (s *stubStage) Label() string { return s.label }

func (s *stubStage) Run(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
	s.calls.Add(1)
	if s.run == nil {
		return jobs.Output{}, nil
	}
	return s.run(ctx, snap)
}

func (s *stubStage) HealthCheck(context.Context) stage.Health { return stage.Healthy(s.name) }

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) Events() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...)
}

// diaryFixture is a diary pipeline built from stub stages. The transcript is
// chosen by the audio path so concurrent jobs stay distinguishable.
type diaryFixture struct {
	store      *jobs.Store
	normalize  *stubStage
	transcribe *stubStage
	classify   *stubStage
	narrative  *stubStage
	title      *stubStage
	advice     *stubStage

	mu       sync.Mutex
	progress map[int64][]string
}

var errClassifierDown = errors.New("classifier unavailable")

func newDiaryFixture(store *jobs.Store) *diaryFixture {
	f := &diaryFixture{store: store, progress: make(map[int64][]string)}
	f.normalize = newStubStage(pipeline.StageNormalize, "Converting audio", func(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
		f.recordProgress(ctx, snap.JobID)
		return jobs.Output{NormalizedAudio: snap.Input.Diary.AudioPath + ".wav"}, nil
	})
	f.transcribe = newStubStage(pipeline.StageTranscribe, "Transcribing speech", func(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
		f.recordProgress(ctx, snap.JobID)
		path := snap.Input.Diary.AudioPath
		switch {
		case strings.Contains(path, "silent"):
			return jobs.Output{}, nil
		default:
			return jobs.Output{Transcript: "오늘은 " + strings.TrimSuffix(path, ".m4a") + " 에서 산책을 했다"}, nil
		}
	})
	f.classify = newStubStage(pipeline.StageClassifyEmotion, "Analyzing emotion", func(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
		f.recordProgress(ctx, snap.JobID)
		if strings.Contains(snap.Output.Transcript, "broken") {
			return jobs.Output{}, errClassifierDown
		}
		vec, err := emotion.FromMap(map[string]float64{"기쁨": 0.9, "평온": 0.4})
		if err != nil {
			return jobs.Output{}, err
		}
		return jobs.Output{Emotions: vec, EmotionLabel: vec.Dominant()}, nil
	})
	f.narrative = newStubStage(pipeline.StageGenerateNarrative, "Writing diary entry", func(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
		f.recordProgress(ctx, snap.JobID)
		return jobs.Output{Narrative: "일기: " + snap.Output.Transcript}, nil
	})
	f.title = newStubStage(pipeline.StageGenerateTitle, "Choosing a title", func(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
		f.recordProgress(ctx, snap.JobID)
		return jobs.Output{Title: "산책"}, nil
	})
	f.advice = newStubStage(pipeline.StageGenerateAdvice, "Writing advice", func(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
		f.recordProgress(ctx, snap.JobID)
		return jobs.Output{Advice: "오늘의 기쁨을 기억하세요."}, nil
	})
	return f
}

func (f *diaryFixture) recordProgress(ctx context.Context, id int64) {
	job, err := f.store.Get(ctx, id)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.progress[id] = append(f.progress[id], job.ProgressMessage)
	f.mu.Unlock()
}

func (f *diaryFixture) progressFor(id int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.progress[id]...)
}

func (f *diaryFixture) stages() []*stubStage {
	return []*stubStage{f.normalize, f.transcribe, f.classify, f.narrative, f.title, f.advice}
}

func (f *diaryFixture) totalCalls() int32 {
	var n int32
	for _, s := range f.stages() {
		n += s.calls.Load()
	}
	return n
}

func (f *diaryFixture) definition(minChars int) stage.Definition {
	return pipeline.DiaryDefinition(pipeline.DiaryStages{
		Normalize:          f.normalize,
		Transcribe:         f.transcribe,
		ClassifyEmotion:    f.classify,
		GenerateNarrative:  f.narrative,
		GenerateTitle:      f.title,
		GenerateAdvice:     f.advice,
		MinTranscriptChars: minChars,
	})
}

type feedbackFixture struct {
	extractor *keywords.Extractor
	stage     stage.Stage
	calls     *atomic.Int32
}

func newFeedbackFixture() *feedbackFixture {
	extractor := keywords.NewExtractor(keywords.Options{})
	extract := pipeline.NewKeywordsStage(extractor)
	var calls atomic.Int32
	wrapped := newStubStage(extract.Name(), extract.Label(), func(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
		calls.Add(1)
		return extract.Run(ctx, snap)
	})
	return &feedbackFixture{extractor: extractor, stage: wrapped, calls: &calls}
}

func (f *feedbackFixture) definition() stage.Definition {
	return pipeline.FeedbackDefinition(f.stage, f.extractor)
}

type harness struct {
	cfg      *config.Config
	store    *jobs.Store
	diary    *diaryFixture
	feedback *feedbackFixture
	notifier *recordingNotifier
	orch     *workflow.Orchestrator
}

func newHarness(t *testing.T, opts ...workflow.OrchestratorOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	cfg.Workflow.HeartbeatInterval = 1
	store := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:      cfg,
		store:    store,
		diary:    newDiaryFixture(store),
		feedback: newFeedbackFixture(),
		notifier: &recordingNotifier{},
	}
	defs := pipeline.Registry{
		jobs.KindDiaryAnalysis:    h.diary.definition(cfg.Workflow.MinTranscriptChars),
		jobs.KindFeedbackAnalysis: h.feedback.definition(),
	}
	if err := defs.Validate(); err != nil {
		t.Fatalf("definitions invalid: %v", err)
	}
	opts = append([]workflow.OrchestratorOption{workflow.WithNotifier(h.notifier)}, opts...)
	h.orch = workflow.NewOrchestrator(cfg, store, defs, logging.NewNop(), opts...)
	return h
}

func (h *harness) get(t *testing.T, id int64) *jobs.Job {
	t.Helper()
	job, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get job %d: %v", id, err)
	}
	return job
}

func (h *harness) execute(t *testing.T, id int64) *jobs.Job {
	t.Helper()
	if err := h.orch.Execute(context.Background(), id); err != nil {
		t.Fatalf("Execute(%d): %v", id, err)
	}
	return h.get(t, id)
}

func waitTerminal(t *testing.T, store *jobs.Store, id int64) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get job %d: %v", id, err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d did not reach a terminal state", id)
	return nil
}

// faultySession wraps a real session and fails selected writes.
type faultySession struct {
	workflow.JobSession
	failSave   bool
	failFinish bool
}

var errDiskFull = errors.New("disk I/O error")

func (s *faultySession) SaveOutput(ctx context.Context, id int64, out jobs.Output) error {
	if s.failSave {
		return errDiskFull
	}
	return s.JobSession.SaveOutput(ctx, id, out)
}

func (s *faultySession) Finish(ctx context.Context, id int64, outcome jobs.Outcome) error {
	if s.failFinish {
		return errDiskFull
	}
	return s.JobSession.Finish(ctx, id, outcome)
}
