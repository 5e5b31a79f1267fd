package testsupport

import (
	"context"
	"testing"

	"vench/internal/config"
	"vench/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewDiaryJob creates a pending diary job pointing at audioPath.
func NewDiaryJob(t testing.TB, store *jobs.Store, audioPath string) *jobs.Job {
	t.Helper()

	job, err := store.Create(context.Background(), jobs.KindDiaryAnalysis, jobs.Input{
		Diary: &jobs.DiaryInput{AudioPath: audioPath},
	})
	if err != nil {
		t.Fatalf("create diary job: %v", err)
	}
	return job
}

// NewFeedbackJob creates a pending feedback job with the given comment.
func NewFeedbackJob(t testing.TB, store *jobs.Store, diaryID int64, comment string) *jobs.Job {
	t.Helper()

	job, err := store.Create(context.Background(), jobs.KindFeedbackAnalysis, jobs.Input{
		Feedback: &jobs.FeedbackInput{DiaryID: diaryID, Rating: 4, Comment: comment},
	})
	if err != nil {
		t.Fatalf("create feedback job: %v", err)
	}
	return job
}

// ForceStatus drives a job to status through a session, for tests that need
// terminal fixtures without running a pipeline.
func ForceStatus(t testing.TB, store *jobs.Store, id int64, status jobs.Status, out *jobs.Output) {
	t.Helper()

	ctx := context.Background()
	session, err := store.Session(ctx)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	if status == jobs.StatusPending {
		return
	}
	if _, err := session.Claim(ctx, id); err != nil {
		t.Fatalf("claim job: %v", err)
	}
	if status == jobs.StatusProcessing {
		return
	}
	if err := session.Finish(ctx, id, jobs.Outcome{Status: status, ProgressMessage: "fixture", Output: out}); err != nil {
		t.Fatalf("finish job: %v", err)
	}
}
