package pipeline

import (
	"context"
	"errors"

	"vench/internal/jobs"
	"vench/internal/keywords"
	"vench/internal/services"
	"vench/internal/stage"
)

// KeywordsStage extracts the top keywords from a feedback comment.
type KeywordsStage struct {
	extractor KeywordExtractor
}

func NewKeywordsStage(extractor KeywordExtractor) *KeywordsStage {
	return &KeywordsStage{extractor: extractor}
}

func (s *KeywordsStage) Name() string  { return StageExtractKeywords }
func (s *KeywordsStage) Label() string { return "Extracting keywords" }

// Run halts as skipped when the comment yields no usable tokens.
func (s *KeywordsStage) Run(_ context.Context, snap stage.Snapshot) (jobs.Output, error) {
	if snap.Input.Feedback == nil {
		return jobs.Output{}, services.Wrap(services.ErrValidation, StageExtractKeywords, "input", "Feedback input is missing", nil)
	}
	res, err := s.extractor.Extract(snap.Input.Feedback.Comment)
	switch {
	case errors.Is(err, keywords.ErrTooShort):
		return jobs.Output{}, stage.Skip("comment_too_short", MessageCommentTooShort)
	case errors.Is(err, keywords.ErrNoTokens):
		return jobs.Output{}, stage.Skip("no_keywords", MessageNoKeywords)
	case err != nil:
		return jobs.Output{}, services.Wrap(services.ErrExternalTool, StageExtractKeywords, "extract", "Keyword extraction failed", err)
	}
	return jobs.Output{
		NormalizedComment:   res.Normalized,
		Keywords:            res.Keywords,
		KeywordModelVersion: res.ModelVersion,
	}, nil
}

func (s *KeywordsStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(StageExtractKeywords)
}

// keywordSet turns the extracted keywords into the rows committed with the
// terminal status.
func keywordSet(out jobs.Output) *jobs.KeywordSet {
	return &jobs.KeywordSet{
		ModelVersion: out.KeywordModelVersion,
		Words:        append([]string(nil), out.Keywords...),
	}
}
