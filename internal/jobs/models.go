package jobs

import (
	"strings"
	"time"

	"vench/internal/emotion"
)

// Kind selects which pipeline definition applies to a job.
type Kind string

const (
	KindDiaryAnalysis    Kind = "diary_analysis"
	KindFeedbackAnalysis Kind = "feedback_analysis"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindDiaryAnalysis || k == KindFeedbackAnalysis
}

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusSkipped}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	// "done" is the feedback domain's name for completed.
	if normalized == "done" {
		return StatusCompleted, true
	}
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Feedback categories accepted on feedback jobs.
const (
	CategorySTTAccuracy    = "STT_ACCURACY"
	CategoryPerformance    = "PERFORMANCE"
	CategoryUXUI           = "UX_UI"
	CategoryBug            = "BUG"
	CategoryFeatureRequest = "FEATURE_REQUEST"
	CategoryOther          = "OTHER"
)

var categories = map[string]struct{}{
	CategorySTTAccuracy: {}, CategoryPerformance: {}, CategoryUXUI: {},
	CategoryBug: {}, CategoryFeatureRequest: {}, CategoryOther: {},
}

// ValidCategory reports whether c is an accepted feedback category.
func ValidCategory(c string) bool {
	_, ok := categories[c]
	return ok
}

// MaxCommentLength is the longest accepted feedback comment, in runes.
const MaxCommentLength = 5000

// DiaryInput references the stored audio for a diary job.
type DiaryInput struct {
	AudioPath    string `json:"audio_path"`
	OriginalName string `json:"original_name,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
}

// FeedbackInput is the user feedback attached to a completed diary.
type FeedbackInput struct {
	DiaryID  int64  `json:"diary_id"`
	Rating   int    `json:"rating"`
	Category string `json:"category,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// Input is the kind-specific payload. Exactly one field is set and it never
// changes after creation.
type Input struct {
	Diary    *DiaryInput    `json:"diary,omitempty"`
	Feedback *FeedbackInput `json:"feedback,omitempty"`
}

// Output accumulates stage results. Each field is owned by one stage.
type Output struct {
	NormalizedAudio     string         `json:"normalized_audio,omitempty"`
	Transcript          string         `json:"transcript,omitempty"`
	Emotions            emotion.Vector `json:"emotions,omitempty"`
	EmotionLabel        string         `json:"emotion_label,omitempty"`
	Narrative           string         `json:"narrative,omitempty"`
	Title               string         `json:"title,omitempty"`
	Advice              string         `json:"advice,omitempty"`
	NormalizedComment   string         `json:"normalized_comment,omitempty"`
	Keywords            []string       `json:"keywords,omitempty"`
	KeywordModelVersion string         `json:"keyword_model_version,omitempty"`
}

// Merge copies the fields set in partial onto o and leaves the rest untouched.
func (o *Output) Merge(partial Output) {
	if partial.NormalizedAudio != "" {
		o.NormalizedAudio = partial.NormalizedAudio
	}
	if partial.Transcript != "" {
		o.Transcript = partial.Transcript
	}
	if len(partial.Emotions) > 0 {
		o.Emotions = append(emotion.Vector(nil), partial.Emotions...)
	}
	if partial.EmotionLabel != "" {
		o.EmotionLabel = partial.EmotionLabel
	}
	if partial.Narrative != "" {
		o.Narrative = partial.Narrative
	}
	if partial.Title != "" {
		o.Title = partial.Title
	}
	if partial.Advice != "" {
		o.Advice = partial.Advice
	}
	if partial.NormalizedComment != "" {
		o.NormalizedComment = partial.NormalizedComment
	}
	if len(partial.Keywords) > 0 {
		o.Keywords = append([]string(nil), partial.Keywords...)
	}
	if partial.KeywordModelVersion != "" {
		o.KeywordModelVersion = partial.KeywordModelVersion
	}
}

// IsZero reports whether no stage has written output yet.
func (o Output) IsZero() bool {
	return o.NormalizedAudio == "" && o.Transcript == "" && len(o.Emotions) == 0 &&
		o.EmotionLabel == "" && o.Narrative == "" && o.Title == "" && o.Advice == "" &&
		o.NormalizedComment == "" && len(o.Keywords) == 0 && o.KeywordModelVersion == ""
}

// Job is a persisted analysis job.
type Job struct {
	ID              int64      `json:"id"`
	UUID            string     `json:"uuid"`
	Kind            Kind       `json:"kind"`
	Status          Status     `json:"status"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	Input           Input      `json:"input"`
	Output          Output     `json:"output"`
	ErrorDetail     string     `json:"error_detail,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	LastHeartbeat   *time.Time `json:"last_heartbeat,omitempty"`
}

// KeywordRecord is one extracted keyword row.
type KeywordRecord struct {
	ID           int64     `json:"id"`
	JobID        int64     `json:"job_id"`
	Keyword      string    `json:"keyword"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
}

// KeywordSet replaces a job's keyword rows when attached to a terminal outcome.
type KeywordSet struct {
	ModelVersion string
	Words        []string
}

// KeywordCount is one row of the keyword frequency report.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Filter narrows List and Count. Zero values mean "any".
type Filter struct {
	Kinds    []Kind
	Statuses []Status
	Since    time.Time
	Limit    int
	Offset   int
}

// Outcome is a terminal transition committed by Session.Finish.
type Outcome struct {
	Status          Status
	ProgressMessage string
	ErrorDetail     string
	Output          *Output
	Keywords        *KeywordSet
}

// HealthSummary aggregates job counts by lifecycle bucket.
type HealthSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}
