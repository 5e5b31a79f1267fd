package jobs_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"vench/internal/emotion"
	"vench/internal/jobs"
	"vench/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewDiaryJob(t, store, "/tmp/a.m4a")
	if job.ID == 0 || job.UUID == "" {
		t.Fatalf("expected identity to be assigned: %+v", job)
	}
	if job.Status != jobs.StatusPending {
		t.Fatalf("status = %s", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Fatal("expected created_at")
	}

	fetched, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Input.Diary == nil || fetched.Input.Diary.AudioPath != "/tmp/a.m4a" {
		t.Fatalf("unexpected input %+v", fetched.Input)
	}
	byUUID, err := store.GetByUUID(ctx, job.UUID)
	if err != nil || byUUID.ID != job.ID {
		t.Fatalf("GetByUUID = %+v, %v", byUUID, err)
	}

	if _, err := store.Get(ctx, 9999); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []struct {
		name  string
		kind  jobs.Kind
		input jobs.Input
	}{
		{"diary without audio", jobs.KindDiaryAnalysis, jobs.Input{Diary: &jobs.DiaryInput{}}},
		{"diary with feedback payload", jobs.KindDiaryAnalysis, jobs.Input{Feedback: &jobs.FeedbackInput{DiaryID: 1, Rating: 3}}},
		{"rating too high", jobs.KindFeedbackAnalysis, jobs.Input{Feedback: &jobs.FeedbackInput{DiaryID: 1, Rating: 6}}},
		{"unknown category", jobs.KindFeedbackAnalysis, jobs.Input{Feedback: &jobs.FeedbackInput{DiaryID: 1, Rating: 3, Category: "NOPE"}}},
		{"comment too long", jobs.KindFeedbackAnalysis, jobs.Input{Feedback: &jobs.FeedbackInput{DiaryID: 1, Rating: 3, Comment: strings.Repeat("가", jobs.MaxCommentLength+1)}}},
		{"unknown kind", jobs.Kind("other"), jobs.Input{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tc.kind, tc.input); !errors.Is(err, jobs.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	job, err := store.Create(ctx, jobs.KindFeedbackAnalysis, jobs.Input{
		Feedback: &jobs.FeedbackInput{DiaryID: 1, Rating: 5, Category: " bug ", Comment: "  좋아요  "},
	})
	if err != nil {
		t.Fatalf("Create feedback: %v", err)
	}
	if job.Input.Feedback.Comment != "좋아요" || job.Input.Feedback.Category != jobs.CategoryBug {
		t.Fatalf("expected trimmed feedback input, got %+v", job.Input.Feedback)
	}
}

func TestSessionLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewFeedbackJob(t, store, 1, "앱이 자꾸 멈춰요 앱이 느려요")

	session, err := store.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	defer session.Close()

	claimed, err := session.Claim(ctx, job.ID)
	if err != nil || !claimed {
		t.Fatalf("Claim = %v, %v", claimed, err)
	}
	again, err := session.Claim(ctx, job.ID)
	if err != nil || again {
		t.Fatalf("second Claim = %v, %v; want false", again, err)
	}

	if err := session.SetProgress(ctx, job.ID, "Extracting keywords"); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	mid, _ := store.Get(ctx, job.ID)
	if mid.Status != jobs.StatusProcessing || mid.ProgressMessage != "Extracting keywords" || mid.StartedAt == nil {
		t.Fatalf("unexpected processing snapshot %+v", mid)
	}

	out := jobs.Output{Keywords: []string{"앱이", "멈춰요"}, KeywordModelVersion: "morph-v1"}
	if err := session.Finish(ctx, job.ID, jobs.Outcome{
		Status:          jobs.StatusCompleted,
		ProgressMessage: "Analysis complete",
		Output:          &out,
		Keywords:        &jobs.KeywordSet{ModelVersion: "morph-v1", Words: out.Keywords},
	}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	final, _ := store.Get(ctx, job.ID)
	if final.Status != jobs.StatusCompleted || final.FinishedAt == nil {
		t.Fatalf("unexpected final snapshot %+v", final)
	}
	if !reflect.DeepEqual(final.Output.Keywords, out.Keywords) {
		t.Fatalf("keywords output = %v", final.Output.Keywords)
	}
	records, err := store.Keywords(ctx, job.ID)
	if err != nil {
		t.Fatalf("Keywords: %v", err)
	}
	if len(records) != 2 || records[0].Keyword != "앱이" || records[0].ModelVersion != "morph-v1" {
		t.Fatalf("unexpected keyword rows %+v", records)
	}

	// Terminal rows reject further writes.
	if err := session.SetProgress(ctx, job.ID, "late"); !jobs.IsNotProcessing(err) {
		t.Fatalf("expected ErrNotProcessing, got %v", err)
	}
	if err := session.Finish(ctx, job.ID, jobs.Outcome{Status: jobs.StatusFailed}); !jobs.IsNotProcessing(err) {
		t.Fatalf("expected ErrNotProcessing on second finish, got %v", err)
	}
	after, _ := store.Get(ctx, job.ID)
	if !reflect.DeepEqual(final, after) {
		t.Fatalf("terminal record changed:\nbefore %+v\nafter  %+v", final, after)
	}
}

func TestFinishRejectsNonTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewDiaryJob(t, store, "/tmp/a.wav")

	session, err := store.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	defer session.Close()
	if err := session.Finish(ctx, job.ID, jobs.Outcome{Status: jobs.StatusProcessing}); err == nil {
		t.Fatal("expected error for non-terminal outcome")
	}
}

func TestRetryAndKeywordReplacement(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewFeedbackJob(t, store, 1, "녹음 버튼이 안 눌려요")

	session, err := store.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	defer session.Close()
	if _, err := session.Claim(ctx, job.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := session.Finish(ctx, job.ID, jobs.Outcome{
		Status:      jobs.StatusFailed,
		ErrorDetail: "boom",
		Keywords:    &jobs.KeywordSet{ModelVersion: "morph-v1", Words: []string{"old"}},
	}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	ok, err := store.Retry(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("Retry = %v, %v", ok, err)
	}
	reset, _ := store.Get(ctx, job.ID)
	if reset.Status != jobs.StatusPending || reset.ErrorDetail != "" || !reset.Output.IsZero() {
		t.Fatalf("unexpected reset snapshot %+v", reset)
	}
	if rows, _ := store.Keywords(ctx, job.ID); len(rows) != 0 {
		t.Fatalf("expected keywords cleared on retry, got %v", rows)
	}

	if _, err := session.Claim(ctx, job.ID); err != nil {
		t.Fatalf("re-claim: %v", err)
	}
	if err := session.Finish(ctx, job.ID, jobs.Outcome{
		Status:   jobs.StatusCompleted,
		Keywords: &jobs.KeywordSet{ModelVersion: "morph-v1", Words: []string{"녹음", "버튼이"}},
	}); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	rows, _ := store.Keywords(ctx, job.ID)
	if len(rows) != 2 || rows[0].Keyword != "녹음" {
		t.Fatalf("unexpected keywords after re-analysis %+v", rows)
	}

	again, err := store.Retry(ctx, job.ID)
	if err != nil || again {
		t.Fatalf("Retry on completed = %v, %v; want false", again, err)
	}
	if _, err := store.Retry(ctx, 4242); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFailInterruptedAndPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	running := testsupport.NewDiaryJob(t, store, "/tmp/1.wav")
	waiting := testsupport.NewDiaryJob(t, store, "/tmp/2.wav")
	done := testsupport.NewDiaryJob(t, store, "/tmp/3.wav")
	testsupport.ForceStatus(t, store, running.ID, jobs.StatusProcessing, nil)
	testsupport.ForceStatus(t, store, done.ID, jobs.StatusCompleted, &jobs.Output{Transcript: "hello there"})

	n, err := store.FailInterrupted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("FailInterrupted = %d, %v", n, err)
	}
	got, _ := store.Get(ctx, running.ID)
	if got.Status != jobs.StatusFailed || got.ErrorDetail != jobs.InterruptedMessage {
		t.Fatalf("unexpected interrupted job %+v", got)
	}

	ids, err := store.PendingIDs(ctx)
	if err != nil {
		t.Fatalf("PendingIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != waiting.ID {
		t.Fatalf("PendingIDs = %v, want [%d]", ids, waiting.ID)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 3 || health.Failed != 1 || health.Pending != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestListFilterAndCount(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewDiaryJob(t, store, "/tmp/1.wav")
	second := testsupport.NewDiaryJob(t, store, "/tmp/2.wav")
	testsupport.NewFeedbackJob(t, store, first.ID, "")
	testsupport.ForceStatus(t, store, second.ID, jobs.StatusCompleted, nil)

	diaries, err := store.List(ctx, jobs.Filter{Kinds: []jobs.Kind{jobs.KindDiaryAnalysis}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(diaries) != 2 || diaries[0].ID != second.ID {
		t.Fatalf("expected newest first, got %d jobs", len(diaries))
	}

	completed, err := store.List(ctx, jobs.Filter{Statuses: []jobs.Status{jobs.StatusCompleted}})
	if err != nil || len(completed) != 1 || completed[0].ID != second.ID {
		t.Fatalf("completed filter = %v, %v", completed, err)
	}

	page, err := store.List(ctx, jobs.Filter{Limit: 1, Offset: 1})
	if err != nil || len(page) != 1 {
		t.Fatalf("paged list = %v, %v", page, err)
	}
	total, err := store.Count(ctx, jobs.Filter{Limit: 1})
	if err != nil || total != 3 {
		t.Fatalf("Count = %d, %v", total, err)
	}

	future, err := store.List(ctx, jobs.Filter{Since: time.Now().Add(time.Hour)})
	if err != nil || len(future) != 0 {
		t.Fatalf("since filter = %v, %v", future, err)
	}
}

func TestEmotionTotalsAndKeywordStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	vecA, _ := emotion.FromMap(map[string]float64{"기쁨": 0.52, "피로": 0.3})
	vecB, _ := emotion.FromMap(map[string]float64{"기쁨": 0.4, "불안": 0.26})
	a := testsupport.NewDiaryJob(t, store, "/tmp/a.wav")
	b := testsupport.NewDiaryJob(t, store, "/tmp/b.wav")
	c := testsupport.NewDiaryJob(t, store, "/tmp/c.wav")
	testsupport.ForceStatus(t, store, a.ID, jobs.StatusCompleted, &jobs.Output{Emotions: vecA})
	testsupport.ForceStatus(t, store, b.ID, jobs.StatusCompleted, &jobs.Output{Emotions: vecB})
	testsupport.ForceStatus(t, store, c.ID, jobs.StatusFailed, &jobs.Output{Emotions: vecA})

	totals, count, err := store.EmotionTotals(ctx, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("EmotionTotals: %v", err)
	}
	if count != 2 {
		t.Fatalf("counted %d diaries, want 2", count)
	}
	if len(totals) != len(emotion.Labels) {
		t.Fatalf("expected every label, got %v", totals)
	}
	m := totals.Map()
	if m["기쁨"] != 0.9 || m["피로"] != 0.3 || m["불안"] != 0.3 || m["설렘"] != 0 {
		t.Fatalf("unexpected totals %v", m)
	}

	for _, words := range [][]string{{"녹음", "버튼"}, {"녹음"}} {
		fb := testsupport.NewFeedbackJob(t, store, a.ID, strings.Join(words, " "))
		session, err := store.Session(ctx)
		if err != nil {
			t.Fatalf("Session: %v", err)
		}
		if _, err := session.Claim(ctx, fb.ID); err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if err := session.Finish(ctx, fb.ID, jobs.Outcome{
			Status:   jobs.StatusCompleted,
			Keywords: &jobs.KeywordSet{ModelVersion: "morph-v1", Words: words},
		}); err != nil {
			t.Fatalf("Finish: %v", err)
		}
		session.Close()
	}
	stats, err := store.KeywordStats(ctx, time.Time{}, 10)
	if err != nil {
		t.Fatalf("KeywordStats: %v", err)
	}
	want := []jobs.KeywordCount{{Keyword: "녹음", Count: 2}, {Keyword: "버튼", Count: 1}}
	if !reflect.DeepEqual(stats, want) {
		t.Fatalf("KeywordStats = %v, want %v", stats, want)
	}
}

func TestOpenPathReopensExistingSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vench.db")
	store, err := jobs.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := jobs.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
