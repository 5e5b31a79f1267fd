package narrative

import (
	"context"
	"fmt"
	"strings"

	"vench/internal/emotion"
	"vench/internal/services"
	"vench/internal/services/llm"
)

// Completer is the free-text chat capability the generator needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	Configured() bool
}

const (
	narrativeMaxTokens   = 400
	narrativeTemperature = 0.3
	titleMaxTokens       = 50
	titleTemperature     = 0.7
	adviceMaxTokens      = 300
	adviceTemperature    = 0.5
)

// Generator writes the narrative, title and advice for a diary.
type Generator struct {
	llm Completer
}

// NewGenerator wires the generator to an LLM client.
func NewGenerator(llm Completer) *Generator {
	return &Generator{llm: llm}
}

// Ready reports whether the backing LLM has credentials.
func (g *Generator) Ready() bool {
	return g != nil && g.llm != nil && g.llm.Configured()
}

// Narrative rewrites the transcript as a first-person diary entry.
func (g *Generator) Narrative(ctx context.Context, transcript string, emotions emotion.Vector) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", services.Wrap(services.ErrValidation, "narrative", "generate", "Transcript is empty", nil)
	}
	user := fmt.Sprintf("감정 점수: %s\n\n이야기:\n%s", describeEmotions(emotions), transcript)
	text, err := g.complete(ctx, "narrative", llm.Request{
		System:      narrativeSystemPrompt,
		User:        user,
		Temperature: narrativeTemperature,
		MaxTokens:   narrativeMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return g.require("narrative", CleanNarrative(text))
}

// Title names a generated narrative.
func (g *Generator) Title(ctx context.Context, narrative string) (string, error) {
	narrative = strings.TrimSpace(narrative)
	if narrative == "" {
		return "", services.Wrap(services.ErrValidation, "title", "generate", "Narrative is empty", nil)
	}
	text, err := g.complete(ctx, "title", llm.Request{
		System:      titleSystemPrompt,
		User:        narrative,
		Temperature: titleTemperature,
		MaxTokens:   titleMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return g.require("title", CleanTitle(text))
}

// Advice writes a short supportive note from the transcript and emotions.
func (g *Generator) Advice(ctx context.Context, transcript string, emotions emotion.Vector) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", services.Wrap(services.ErrValidation, "advice", "generate", "Transcript is empty", nil)
	}
	user := fmt.Sprintf("가장 두드러진 감정: %s\n감정 점수: %s\n\n이야기:\n%s",
		dominantOrUnknown(emotions), describeEmotions(emotions), transcript)
	text, err := g.complete(ctx, "advice", llm.Request{
		System:      adviceSystemPrompt,
		User:        user,
		Temperature: adviceTemperature,
		MaxTokens:   adviceMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return g.require("advice", CleanNarrative(text))
}

func (g *Generator) complete(ctx context.Context, operation string, req llm.Request) (string, error) {
	if !g.Ready() {
		return "", services.Wrap(services.ErrConfiguration, operation, "generate", "LLM is not configured", nil)
	}
	text, err := g.llm.Complete(ctx, req)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, operation, "generate", "Text generation failed", err)
	}
	return text, nil
}

func (g *Generator) require(operation, text string) (string, error) {
	if text == "" {
		return "", services.Wrap(services.ErrExternalTool, operation, "generate", "Model returned empty text", nil)
	}
	return text, nil
}

func describeEmotions(v emotion.Vector) string {
	if len(v) == 0 {
		return "알 수 없음"
	}
	parts := make([]string, 0, len(v))
	for _, s := range v.Rounded() {
		parts = append(parts, fmt.Sprintf("%s %.1f", s.Label, s.Score))
	}
	return strings.Join(parts, ", ")
}

func dominantOrUnknown(v emotion.Vector) string {
	if d := v.Dominant(); d != "" {
		return d
	}
	return "알 수 없음"
}
