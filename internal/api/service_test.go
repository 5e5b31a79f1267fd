package api_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"vench/internal/api"
	"vench/internal/emotion"
	"vench/internal/jobs"
	"vench/internal/logging"
	"vench/internal/testsupport"
)

type recordingSubmitter struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (r *recordingSubmitter) Submit(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return r.err
}

func (r *recordingSubmitter) submitted() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.ids...)
}

type fixture struct {
	store  *jobs.Store
	submit *recordingSubmitter
	svc    *api.Service
	upload string
}

func newFixture(t *testing.T, opts ...api.Option) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sub := &recordingSubmitter{}
	return &fixture{
		store:  store,
		submit: sub,
		svc:    api.NewService(cfg, store, sub, logging.NewNop(), opts...),
		upload: cfg.Paths.UploadDir,
	}
}

func (f *fixture) completedDiary(t *testing.T, scores map[string]float64) *jobs.Job {
	t.Helper()
	job := testsupport.NewDiaryJob(t, f.store, "diary.m4a")
	vec, err := emotion.FromMap(scores)
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	testsupport.ForceStatus(t, f.store, job.ID, jobs.StatusCompleted, &jobs.Output{
		Transcript: "오늘은 산책을 했다", Emotions: vec, EmotionLabel: vec.Dominant(),
	})
	return job
}

func TestCreateDiaryStoresUploadAndSubmits(t *testing.T) {
	f := newFixture(t)

	job, err := f.svc.CreateDiary(context.Background(), api.DiaryUpload{
		FileName:    "오늘 일기.M4A",
		ContentType: "audio/mp4",
		Body:        strings.NewReader("fake audio bytes"),
	})
	if err != nil {
		t.Fatalf("CreateDiary: %v", err)
	}
	if job.Status != jobs.StatusPending || job.Kind != jobs.KindDiaryAnalysis {
		t.Fatalf("unexpected job %+v", job)
	}
	want := filepath.Join(f.upload, job.UUID+".m4a")
	if job.Input.Diary.AudioPath != want {
		t.Fatalf("audio path = %q, want %q", job.Input.Diary.AudioPath, want)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "fake audio bytes" {
		t.Fatalf("stored upload = %q, %v", data, err)
	}
	if job.Input.Diary.OriginalName != "오늘 일기.M4A" {
		t.Fatalf("original name = %q", job.Input.Diary.OriginalName)
	}
	if got := f.submit.submitted(); len(got) != 1 || got[0] != job.ID {
		t.Fatalf("submitted = %v", got)
	}
}

func TestCreateDiaryKeepsOnlyBaseName(t *testing.T) {
	f := newFixture(t)

	job, err := f.svc.CreateDiary(context.Background(), api.DiaryUpload{
		FileName: `C:\Users\me\..\voice memo.WEBM`,
		Body:     strings.NewReader("fake audio bytes"),
	})
	if err != nil {
		t.Fatalf("CreateDiary: %v", err)
	}
	if job.Input.Diary.OriginalName != "voice memo.WEBM" {
		t.Fatalf("original name = %q", job.Input.Diary.OriginalName)
	}
	if want := filepath.Join(f.upload, job.UUID+".webm"); job.Input.Diary.AudioPath != want {
		t.Fatalf("audio path = %q, want %q", job.Input.Diary.AudioPath, want)
	}
}

func TestCreateDiaryListsAcceptedTypes(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateDiary(context.Background(), api.DiaryUpload{FileName: "notes.txt", Body: strings.NewReader("hi")})
	if err == nil || !strings.Contains(err.Error(), ".m4a") || !strings.Contains(err.Error(), `".txt"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestCreateDiaryRejectsBadUploads(t *testing.T) {
	tests := []struct {
		name   string
		upload api.DiaryUpload
	}{
		{"no body", api.DiaryUpload{FileName: "a.m4a"}},
		{"unsupported type", api.DiaryUpload{FileName: "notes.txt", Body: strings.NewReader("hi")}},
		{"no extension", api.DiaryUpload{FileName: "m4a", Body: strings.NewReader("hi")}},
		{"directory name", api.DiaryUpload{FileName: "uploads/..", Body: strings.NewReader("hi")}},
		{"empty", api.DiaryUpload{FileName: "a.wav", Body: strings.NewReader("")}},
		{"too large", api.DiaryUpload{FileName: "a.wav", Body: bytes.NewReader(make([]byte, 64))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, api.WithMaxUploadBytes(32))
			_, err := f.svc.CreateDiary(context.Background(), tt.upload)
			if !errors.Is(err, api.ErrInvalidRequest) {
				t.Fatalf("err = %v", err)
			}
			entries, _ := os.ReadDir(f.upload)
			if len(entries) != 0 {
				t.Fatalf("rejected upload left %d files behind", len(entries))
			}
			if len(f.submit.submitted()) != 0 {
				t.Fatal("rejected upload was submitted")
			}
		})
	}
}

func TestCreateFeedbackRequiresCompletedDiary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := testsupport.NewDiaryJob(t, f.store, "pending.m4a")
	if _, err := f.svc.CreateFeedback(ctx, api.FeedbackRequest{DiaryID: pending.ID, Rating: 5}); !errors.Is(err, api.ErrConflict) {
		t.Fatalf("pending diary: err = %v", err)
	}
	if _, err := f.svc.CreateFeedback(ctx, api.FeedbackRequest{DiaryID: 999, Rating: 5}); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("missing diary: err = %v", err)
	}

	diary := f.completedDiary(t, map[string]float64{"평온": 0.7})
	if _, err := f.svc.CreateFeedback(ctx, api.FeedbackRequest{DiaryID: diary.ID, Rating: 9}); !errors.Is(err, api.ErrInvalidRequest) {
		t.Fatalf("bad rating: err = %v", err)
	}

	job, err := f.svc.CreateFeedback(ctx, api.FeedbackRequest{
		DiaryID: diary.ID, Rating: 4, Category: "ux_ui", Comment: "  알림이 너무 늦어요  ",
	})
	if err != nil {
		t.Fatalf("CreateFeedback: %v", err)
	}
	fb := job.Input.Feedback
	if fb.Comment != "알림이 너무 늦어요" || fb.Category != jobs.CategoryUXUI {
		t.Fatalf("feedback not normalized: %+v", fb)
	}
	if got := f.submit.submitted(); len(got) != 1 || got[0] != job.ID {
		t.Fatalf("submitted = %v", got)
	}
}

func TestCreateFeedbackRejectsNonDiary(t *testing.T) {
	f := newFixture(t)
	other := testsupport.NewFeedbackJob(t, f.store, 1, "comment")
	_, err := f.svc.CreateFeedback(context.Background(), api.FeedbackRequest{DiaryID: other.ID, Rating: 3})
	if !errors.Is(err, api.ErrInvalidRequest) {
		t.Fatalf("err = %v", err)
	}
}

func TestJobLookupByIDAndUUID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := testsupport.NewFeedbackJob(t, f.store, 1, "알림 설정")

	sess, err := f.store.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if _, err := sess.Claim(ctx, job.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := sess.Finish(ctx, job.ID, jobs.Outcome{
		Status:   jobs.StatusCompleted,
		Keywords: &jobs.KeywordSet{ModelVersion: "morph-v1", Words: []string{"알림", "설정"}},
	}); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	sess.Close()

	for _, ref := range []string{"  " + itoa(job.ID), job.UUID} {
		resp, err := f.svc.Job(ctx, ref)
		if err != nil {
			t.Fatalf("Job(%q): %v", ref, err)
		}
		if resp.Job.ID != job.ID || len(resp.Keywords) != 2 || resp.Keywords[0].Keyword != "알림" {
			t.Fatalf("Job(%q) = %+v", ref, resp)
		}
	}

	if _, err := f.svc.Job(ctx, "not-an-id"); !errors.Is(err, api.ErrInvalidRequest) {
		t.Fatalf("bad ref: err = %v", err)
	}
	if _, err := f.svc.Job(ctx, "12345"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("missing job: err = %v", err)
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	var ids []int64
	for range 5 {
		ids = append(ids, testsupport.NewDiaryJob(t, f.store, "a.m4a").ID)
	}
	testsupport.NewFeedbackJob(t, f.store, ids[0], "comment")

	resp, err := f.svc.List(context.Background(), api.ListRequest{
		Kinds: []jobs.Kind{jobs.KindDiaryAnalysis},
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 5 || len(resp.Jobs) != 2 {
		t.Fatalf("total=%d page=%d", resp.Total, len(resp.Jobs))
	}
	if resp.Jobs[0].ID != ids[4] || resp.Jobs[1].ID != ids[3] {
		t.Fatalf("page order = [%d %d]", resp.Jobs[0].ID, resp.Jobs[1].ID)
	}

	if _, err := f.svc.List(context.Background(), api.ListRequest{Kinds: []jobs.Kind{"bogus"}}); !errors.Is(err, api.ErrInvalidRequest) {
		t.Fatalf("bogus kind: err = %v", err)
	}
}

func TestRetryOnlyFailedJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done := f.completedDiary(t, map[string]float64{"기쁨": 1})
	if _, err := f.svc.Retry(ctx, itoa(done.ID)); !errors.Is(err, api.ErrConflict) {
		t.Fatalf("completed job: err = %v", err)
	}

	failed := testsupport.NewDiaryJob(t, f.store, "broken.m4a")
	testsupport.ForceStatus(t, f.store, failed.ID, jobs.StatusFailed, &jobs.Output{Transcript: "partial"})

	job, err := f.svc.Retry(ctx, failed.UUID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if job.Status != jobs.StatusPending || !job.Output.IsZero() {
		t.Fatalf("retried job = %+v", job)
	}
	if got := f.submit.submitted(); len(got) != 1 || got[0] != failed.ID {
		t.Fatalf("submitted = %v", got)
	}
}

func TestEmotionStatsSumsCompletedDiaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.EmotionStats(ctx, 0)
	if err != nil {
		t.Fatalf("EmotionStats: %v", err)
	}
	if empty.Diaries != 0 || len(empty.Scores) != len(emotion.Labels) || empty.Dominant != "" {
		t.Fatalf("empty stats = %+v", empty)
	}

	f.completedDiary(t, map[string]float64{"슬픔": 0.64, "피로": 0.3})
	f.completedDiary(t, map[string]float64{"슬픔": 0.22, "기쁨": 0.5})
	testsupport.NewDiaryJob(t, f.store, "pending.m4a")

	stats, err := f.svc.EmotionStats(ctx, 7)
	if err != nil {
		t.Fatalf("EmotionStats: %v", err)
	}
	if stats.Diaries != 2 || stats.Dominant != "슬픔" {
		t.Fatalf("stats = %+v", stats)
	}
	got := stats.Scores.Map()
	if got["슬픔"] != 0.9 || got["기쁨"] != 0.5 || got["피로"] != 0.3 || got["분노"] != 0 {
		t.Fatalf("scores = %v", got)
	}
}

func TestSubmitFailureKeepsJob(t *testing.T) {
	f := newFixture(t)
	f.submit.err = errors.New("dispatcher not running")

	job, err := f.svc.CreateDiary(context.Background(), api.DiaryUpload{FileName: "a.wav", Body: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("CreateDiary: %v", err)
	}
	stored, err := f.store.Get(context.Background(), job.ID)
	if err != nil || stored.Status != jobs.StatusPending {
		t.Fatalf("stored = %+v, %v", stored, err)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
