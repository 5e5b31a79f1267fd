package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"vench/internal/config"
	"vench/internal/emotion"
	"vench/internal/jobs"
	"vench/internal/logging"
	"vench/internal/textutil"
)

var (
	// ErrInvalidRequest rejects malformed input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConflict rejects a request the job's current state does not allow.
	ErrConflict = errors.New("conflict")
)

// Limits applied to requests.
const (
	DefaultMaxUploadBytes   = 50 << 20
	DefaultListLimit        = 50
	MaxListLimit            = 200
	DefaultEmotionStatsDays = 7
	DefaultKeywordStatsDays = 30
	DefaultKeywordLimit     = 20
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, kind jobs.Kind, input jobs.Input) (*jobs.Job, error)
	CreateWithUUID(ctx context.Context, publicID string, kind jobs.Kind, input jobs.Input) (*jobs.Job, error)
	Get(ctx context.Context, id int64) (*jobs.Job, error)
	GetByUUID(ctx context.Context, publicID string) (*jobs.Job, error)
	List(ctx context.Context, filter jobs.Filter) ([]*jobs.Job, error)
	Count(ctx context.Context, filter jobs.Filter) (int, error)
	Keywords(ctx context.Context, jobID int64) ([]jobs.KeywordRecord, error)
	Retry(ctx context.Context, id int64) (bool, error)
	EmotionTotals(ctx context.Context, since time.Time) (emotion.Vector, int, error)
	KeywordStats(ctx context.Context, since time.Time, limit int) ([]jobs.KeywordCount, error)
}

// Submitter schedules job execution.
type Submitter interface {
	Submit(id int64) error
}

// Service implements job ingestion and queries.
type Service struct {
	store          Store
	submitter      Submitter
	uploadDir      string
	maxUploadBytes int64
	logger         *slog.Logger
	now            func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithMaxUploadBytes caps the stored size of one recording.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithClock replaces time.Now for statistics windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a Service. submitter may be nil, in which case created
// jobs stay pending until the next dispatcher start.
func NewService(cfg *config.Config, store Store, submitter Submitter, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:          store,
		submitter:      submitter,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         logging.NewComponentLogger(logger, "api"),
		now:            time.Now,
	}
	if cfg != nil {
		s.uploadDir = cfg.Paths.UploadDir
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDiary stores the recording under a fresh public id and queues a
// diary analysis job for it.
func (s *Service) CreateDiary(ctx context.Context, upload DiaryUpload) (*jobs.Job, error) {
	if upload.Body == nil {
		return nil, fmt.Errorf("%w: audio file is required", ErrInvalidRequest)
	}
	original := textutil.UploadBaseName(upload.FileName)
	ext, ok := textutil.AudioExtension(original)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported audio type %q (accepted: %s)",
			ErrInvalidRequest, filepath.Ext(original), strings.Join(textutil.AudioExtensions(), ", "))
	}

	publicID := uuid.NewString()
	path := filepath.Join(s.uploadDir, publicID+ext)
	if err := s.saveUpload(path, upload.Body); err != nil {
		return nil, err
	}

	job, err := s.store.CreateWithUUID(ctx, publicID, jobs.KindDiaryAnalysis, jobs.Input{
		Diary: &jobs.DiaryInput{
			AudioPath:    path,
			OriginalName: original,
			ContentType:  strings.TrimSpace(upload.ContentType),
		},
	})
	if err != nil {
		_ = os.Remove(path)
		return nil, classify(err)
	}
	s.logger.Info("diary job created",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("uuid", job.UUID),
		logging.String("original_name", original),
		logging.String(logging.FieldEventType, "job_created"),
	)
	s.submit(job)
	return job, nil
}

func (s *Service) saveUpload(path string, body io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close upload: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	n, err := io.Copy(f, io.LimitReader(body, s.maxUploadBytes+1))
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: audio file is empty", ErrInvalidRequest)
	}
	if n > s.maxUploadBytes {
		return fmt.Errorf("%w: audio file exceeds %d bytes", ErrInvalidRequest, s.maxUploadBytes)
	}
	return nil
}

// CreateFeedback queues keyword analysis for feedback on a completed diary.
func (s *Service) CreateFeedback(ctx context.Context, req FeedbackRequest) (*jobs.Job, error) {
	if req.DiaryID <= 0 {
		return nil, fmt.Errorf("%w: diary_id is required", ErrInvalidRequest)
	}
	diary, err := s.store.Get(ctx, req.DiaryID)
	if err != nil {
		return nil, classify(err)
	}
	if diary.Kind != jobs.KindDiaryAnalysis {
		return nil, fmt.Errorf("%w: job %d is not a diary", ErrInvalidRequest, req.DiaryID)
	}
	if diary.Status != jobs.StatusCompleted {
		return nil, fmt.Errorf("%w: diary %d is %s, feedback needs a completed diary", ErrConflict, req.DiaryID, diary.Status)
	}

	job, err := s.store.Create(ctx, jobs.KindFeedbackAnalysis, jobs.Input{
		Feedback: &jobs.FeedbackInput{
			DiaryID:  req.DiaryID,
			Rating:   req.Rating,
			Category: req.Category,
			Comment:  req.Comment,
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	s.logger.Info("feedback job created",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64("diary_id", req.DiaryID),
		logging.String(logging.FieldEventType, "job_created"),
	)
	s.submit(job)
	return job, nil
}

func (s *Service) submit(job *jobs.Job) {
	if s.submitter == nil {
		return
	}
	if err := s.submitter.Submit(job.ID); err != nil {
		s.logger.Warn("job not submitted; it stays pending until the next start",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "submit_failed"),
		)
	}
}

// Job returns one job by numeric id or public uuid.
func (s *Service) Job(ctx context.Context, ref string) (JobResponse, error) {
	job, err := s.lookup(ctx, ref)
	if err != nil {
		return JobResponse{}, err
	}
	resp := JobResponse{Job: job}
	if job.Kind == jobs.KindFeedbackAnalysis {
		kw, err := s.store.Keywords(ctx, job.ID)
		if err != nil {
			return JobResponse{}, err
		}
		resp.Keywords = kw
	}
	return resp, nil
}

func (s *Service) lookup(ctx context.Context, ref string) (*jobs.Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: job id is required", ErrInvalidRequest)
	}
	var (
		job *jobs.Job
		err error
	)
	if id, perr := parseID(ref); perr == nil {
		job, err = s.store.Get(ctx, id)
	} else if _, uerr := uuid.Parse(ref); uerr == nil {
		job, err = s.store.GetByUUID(ctx, ref)
	} else {
		return nil, fmt.Errorf("%w: %q is neither a job id nor a uuid", ErrInvalidRequest, ref)
	}
	if err != nil {
		return nil, classify(err)
	}
	return job, nil
}

// List returns one page of jobs and the total matching count.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResponse, error) {
	for _, k := range req.Kinds {
		if !k.Valid() {
			return ListResponse{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, k)
		}
	}
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	filter := jobs.Filter{
		Kinds:    req.Kinds,
		Statuses: req.Statuses,
		Since:    req.Since,
		Limit:    limit,
		Offset:   max(req.Offset, 0),
	}
	items, err := s.store.List(ctx, filter)
	if err != nil {
		return ListResponse{}, err
	}
	filter.Limit, filter.Offset = 0, 0
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return ListResponse{}, err
	}
	if items == nil {
		items = []*jobs.Job{}
	}
	return ListResponse{Jobs: items, Total: total}, nil
}

// Retry resets a failed job to pending and resubmits it.
func (s *Service) Retry(ctx context.Context, ref string) (*jobs.Job, error) {
	job, err := s.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.Retry(ctx, job.ID)
	if err != nil {
		return nil, classify(err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: job %d is %s, only failed jobs can be retried", ErrConflict, job.ID, job.Status)
	}
	job, err = s.store.Get(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("job retry requested",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldEventType, "job_retry"),
	)
	s.submit(job)
	return job, nil
}

// EmotionStats sums emotion scores over completed diaries from the last days
// days (default 7).
func (s *Service) EmotionStats(ctx context.Context, days int) (EmotionStats, error) {
	if days <= 0 {
		days = DefaultEmotionStatsDays
	}
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	scores, n, err := s.store.EmotionTotals(ctx, since)
	if err != nil {
		return EmotionStats{}, err
	}
	stats := EmotionStats{Since: since, Diaries: n, Scores: scores}
	if n > 0 {
		stats.Dominant = scores.Dominant()
	}
	return stats, nil
}

// KeywordStats lists the most frequent keywords from completed feedback.
func (s *Service) KeywordStats(ctx context.Context, days, limit int) (KeywordStats, error) {
	if days <= 0 {
		days = DefaultKeywordStatsDays
	}
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	counts, err := s.store.KeywordStats(ctx, since, limit)
	if err != nil {
		return KeywordStats{}, err
	}
	if counts == nil {
		counts = []jobs.KeywordCount{}
	}
	return KeywordStats{Since: since, Keywords: counts}, nil
}

func parseID(ref string) (int64, error) {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("job id must be positive")
	}
	return id, nil
}

// classify maps store validation errors onto the request error classes.
func classify(err error) error {
	if errors.Is(err, jobs.ErrInvalidInput) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return err
}
