package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateInput checks the payload against the job kind.
func ValidateInput(kind Kind, input Input) error {
	switch kind {
	case KindDiaryAnalysis:
		if input.Diary == nil || input.Feedback != nil {
			return fmt.Errorf("%w: diary job requires a diary payload", ErrInvalidInput)
		}
		if strings.TrimSpace(input.Diary.AudioPath) == "" {
			return fmt.Errorf("%w: audio path is required", ErrInvalidInput)
		}
	case KindFeedbackAnalysis:
		if input.Feedback == nil || input.Diary != nil {
			return fmt.Errorf("%w: feedback job requires a feedback payload", ErrInvalidInput)
		}
		fb := input.Feedback
		if fb.DiaryID <= 0 {
			return fmt.Errorf("%w: diary id is required", ErrInvalidInput)
		}
		if fb.Rating < 1 || fb.Rating > 5 {
			return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
		}
		if fb.Category != "" && !ValidCategory(fb.Category) {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, fb.Category)
		}
		if utf8.RuneCountInString(fb.Comment) > MaxCommentLength {
			return fmt.Errorf("%w: comment exceeds %d characters", ErrInvalidInput, MaxCommentLength)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, kind)
	}
	return nil
}

// Create inserts a pending job and returns it.
func (s *Store) Create(ctx context.Context, kind Kind, input Input) (*Job, error) {
	if input.Feedback != nil {
		fb := *input.Feedback
		fb.Comment = strings.TrimSpace(fb.Comment)
		fb.Category = strings.ToUpper(strings.TrimSpace(fb.Category))
		input.Feedback = &fb
	}
	if err := ValidateInput(kind, input); err != nil {
		return nil, err
	}
	return s.insert(ctx, uuid.NewString(), kind, input)
}

// CreateWithUUID inserts a pending job under a caller-chosen public id, used
// when the id already names stored input such as an uploaded audio file.
func (s *Store) CreateWithUUID(ctx context.Context, publicID string, kind Kind, input Input) (*Job, error) {
	if _, err := uuid.Parse(publicID); err != nil {
		return nil, fmt.Errorf("%w: uuid: %v", ErrInvalidInput, err)
	}
	if err := ValidateInput(kind, input); err != nil {
		return nil, err
	}
	return s.insert(ctx, publicID, kind, input)
}

func (s *Store) insert(ctx context.Context, publicID string, kind Kind, input Input) (*Job, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	now := s.timestamp()
	res, err := execWithRetry(ctx, s.db,
		`INSERT INTO jobs (uuid, kind, status, input_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		publicID, kind, StatusPending, string(data), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("job id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns a snapshot of one job.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	return getJob(ensureContext(ctx), s.db, id)
}

func getJob(ctx context.Context, q querier, id int64) (*Job, error) {
	row := q.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// GetByUUID returns the job with the given public id.
func (s *Store) GetByUUID(ctx context.Context, publicID string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+jobColumns+" FROM jobs WHERE uuid = ?", publicID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, publicID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", publicID, err)
	}
	return job, nil
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if len(f.Kinds) > 0 {
		clauses = append(clauses, "kind IN ("+makePlaceholders(len(f.Kinds))+")")
		for _, k := range f.Kinds {
			args = append(args, string(k))
		}
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(f.Since))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns jobs matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Job, error) {
	where, args := filter.where()
	query := "SELECT " + jobColumns + " FROM jobs" + where + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Count returns how many jobs match the filter, ignoring limit and offset.
func (s *Store) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := filter.where()
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM jobs"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

// Keywords returns the keyword rows recorded for a job in extraction order.
func (s *Store) Keywords(ctx context.Context, jobID int64) ([]KeywordRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, job_id, keyword, model_version, created_at FROM job_keywords WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer rows.Close()

	var out []KeywordRecord
	for rows.Next() {
		var (
			rec     KeywordRecord
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.Keyword, &rec.ModelVersion, &created); err != nil {
			return nil, err
		}
		if t, err := parseTimeString(created); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
