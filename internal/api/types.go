package api

import (
	"io"
	"time"

	"vench/internal/emotion"
	"vench/internal/jobs"
	"vench/internal/preflight"
	"vench/internal/stage"
	"vench/internal/workflow"
)

// DiaryUpload is one audio recording to analyze.
type DiaryUpload struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// FeedbackRequest attaches feedback to a completed diary.
type FeedbackRequest struct {
	DiaryID  int64  `json:"diary_id"`
	Rating   int    `json:"rating"`
	Category string `json:"category,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// JobResponse wraps a job and, for feedback jobs, its keyword rows.
type JobResponse struct {
	Job      *jobs.Job            `json:"job"`
	Keywords []jobs.KeywordRecord `json:"keywords,omitempty"`
}

// ListRequest narrows a listing. Zero values mean "any".
type ListRequest struct {
	Kinds    []jobs.Kind
	Statuses []jobs.Status
	Since    time.Time
	Limit    int
	Offset   int
}

// ListResponse is one page of jobs, newest first, with the unpaged total.
type ListResponse struct {
	Jobs  []*jobs.Job `json:"jobs"`
	Total int         `json:"total"`
}

// EmotionStats is the per-label score sum over completed diaries.
type EmotionStats struct {
	Since    time.Time      `json:"since"`
	Diaries  int            `json:"diaries"`
	Scores   emotion.Vector `json:"scores"`
	Dominant string         `json:"dominant,omitempty"`
}

// KeywordStats lists the most frequent feedback keywords.
type KeywordStats struct {
	Since    time.Time           `json:"since"`
	Keywords []jobs.KeywordCount `json:"keywords"`
}

// Status aggregates daemon runtime information.
type Status struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	Dispatcher   workflow.Stats     `json:"dispatcher"`
	Jobs         jobs.HealthSummary `json:"jobs"`
	Stages       []stage.Health     `json:"stages"`
	Checks       []preflight.Result `json:"checks"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
