package emotion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vench/internal/services"
)

// Completer is the JSON chat capability the classifier needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, target any) error
	Configured() bool
}

const classifierSystemPrompt = `You score the emotions expressed in a Korean voice diary.
Score every label independently from 0.0 to 1.0. Several labels may be high at once; scores do not need to sum to 1.
Labels: %s
Respond with JSON only: {"scores": {"<label>": <score>, ...}}`

// Classifier fills an emotion Vector from transcript text.
type Classifier struct {
	llm Completer
}

// NewClassifier wires the classifier to an LLM client.
func NewClassifier(llm Completer) *Classifier {
	return &Classifier{llm: llm}
}

// Classify scores text against the closed label set. Labels the model omits
// score zero and unknown labels are dropped, but a reply with no known label
// at all is an error.
func (c *Classifier) Classify(ctx context.Context, text string) (Vector, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "classify", "emotion", "Transcript is empty", nil)
	}
	if c == nil || c.llm == nil || !c.llm.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "classify", "emotion", "LLM is not configured", nil)
	}

	var reply struct {
		Scores map[string]float64 `json:"scores"`
	}
	system := fmt.Sprintf(classifierSystemPrompt, strings.Join(Labels, ", "))
	if err := c.llm.CompleteJSON(ctx, system, text, &reply); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "emotion", "Emotion classification failed", err)
	}

	known := make(map[string]float64, len(Labels))
	for label, score := range reply.Scores {
		label = strings.TrimSpace(label)
		if IsLabel(label) {
			known[label] = score
		}
	}
	if len(known) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "emotion", "Classifier returned no known labels", errors.New("empty score set"))
	}
	vec, err := FromMap(known)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "emotion", "Classifier returned invalid scores", err)
	}
	return vec, nil
}

// Ready reports whether the backing LLM has credentials.
func (c *Classifier) Ready() bool {
	return c != nil && c.llm != nil && c.llm.Configured()
}
