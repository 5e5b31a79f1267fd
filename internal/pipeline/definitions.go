package pipeline

import (
	"strings"
	"unicode/utf8"

	"vench/internal/jobs"
	"vench/internal/stage"
)

// User-facing progress messages for declared short-circuits.
const (
	MessageCompleted       = "Analysis complete"
	MessageNotRecognized   = "Speech could not be recognized"
	MessageNoComment       = "No comment to analyze"
	MessageCommentTooShort = "Comment too short to analyze"
	MessageNoKeywords      = "No keywords found"
)

// DiaryStages is the capability set for diary analysis.
type DiaryStages struct {
	Normalize          stage.Stage
	Transcribe         stage.Stage
	ClassifyEmotion    stage.Stage
	GenerateNarrative  stage.Stage
	GenerateTitle      stage.Stage
	GenerateAdvice     stage.Stage
	MinTranscriptChars int
}

// DiaryDefinition builds the diary analysis pipeline.
func DiaryDefinition(s DiaryStages) stage.Definition {
	minChars := s.MinTranscriptChars
	if minChars <= 0 {
		minChars = 1
	}
	transcriptGuard := &stage.Guard{
		Name: "transcript_too_short",
		Trips: func(snap stage.Snapshot) bool {
			return utf8.RuneCountInString(strings.TrimSpace(snap.Output.Transcript)) < minChars
		},
		Status:  jobs.StatusFailed,
		Message: MessageNotRecognized,
	}
	return stage.Definition{
		Kind: jobs.KindDiaryAnalysis,
		Steps: []stage.Step{
			{Stage: s.Normalize},
			{Stage: s.Transcribe},
			{Stage: s.ClassifyEmotion, Guard: transcriptGuard},
			{Stage: s.GenerateNarrative},
			{Stage: s.GenerateTitle},
			{Stage: s.GenerateAdvice},
		},
		CompletionMessage: MessageCompleted,
	}
}

// FeedbackDefinition builds the feedback keyword pipeline. The length guard
// uses the extractor's own normalisation so the rule matches Extract.
func FeedbackDefinition(extractKeywords stage.Stage, extractor KeywordExtractor) stage.Definition {
	missing := &stage.Guard{
		Name: "comment_missing",
		Trips: func(snap stage.Snapshot) bool {
			return snap.Input.Feedback == nil || strings.TrimSpace(snap.Input.Feedback.Comment) == ""
		},
		Status:  jobs.StatusSkipped,
		Message: MessageNoComment,
	}
	tooShort := &stage.Guard{
		Name: "comment_too_short",
		Trips: func(snap stage.Snapshot) bool {
			return snap.Input.Feedback != nil && extractor != nil && extractor.TooShort(snap.Input.Feedback.Comment)
		},
		Status:  jobs.StatusSkipped,
		Message: MessageCommentTooShort,
	}
	return stage.Definition{
		Kind:              jobs.KindFeedbackAnalysis,
		Entry:             []*stage.Guard{missing, tooShort},
		Steps:             []stage.Step{{Stage: extractKeywords}},
		CompletionMessage: MessageCompleted,
		Keywords:          keywordSet,
	}
}
