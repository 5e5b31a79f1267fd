package pipeline

import (
	"context"

	"vench/internal/emotion"
	"vench/internal/keywords"
)

// AudioNormalizer converts an upload into the WAV the recognizer expects.
type AudioNormalizer interface {
	Normalize(ctx context.Context, source, dest string) error
}

// Transcriber turns normalized audio into text. An empty string with a nil
// error means nothing was recognized.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, outputDir string) (string, error)
}

// EmotionClassifier scores text against the closed label set.
type EmotionClassifier interface {
	Classify(ctx context.Context, text string) (emotion.Vector, error)
	Ready() bool
}

// TextGenerator writes the diary narrative, title and advice.
type TextGenerator interface {
	Narrative(ctx context.Context, transcript string, emotions emotion.Vector) (string, error)
	Title(ctx context.Context, narrative string) (string, error)
	Advice(ctx context.Context, transcript string, emotions emotion.Vector) (string, error)
	Ready() bool
}

// KeywordExtractor pulls ranked keywords from a comment.
type KeywordExtractor interface {
	Extract(text string) (keywords.Result, error)
	TooShort(text string) bool
	ModelVersion() string
}
