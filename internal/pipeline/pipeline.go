package pipeline

import (
	"fmt"

	"vench/internal/config"
	"vench/internal/deps"
	"vench/internal/emotion"
	"vench/internal/jobs"
	"vench/internal/keywords"
	"vench/internal/narrative"
	"vench/internal/services/llm"
	"vench/internal/services/whisperx"
	"vench/internal/stage"
)

// Registry maps each job kind to its definition.
type Registry map[jobs.Kind]stage.Definition

// Lookup returns the definition for kind.
func (r Registry) Lookup(kind jobs.Kind) (stage.Definition, bool) {
	def, ok := r[kind]
	return def, ok
}

// Validate checks every registered definition.
func (r Registry) Validate() error {
	for kind, def := range r {
		if def.Kind != kind {
			return fmt.Errorf("pipeline registry: %s registered under %s", def.Kind, kind)
		}
		if err := def.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Stages lists every distinct stage across definitions, diary first.
func (r Registry) Stages() []stage.Stage {
	var out []stage.Stage
	seen := make(map[string]struct{})
	for _, kind := range []jobs.Kind{jobs.KindDiaryAnalysis, jobs.KindFeedbackAnalysis} {
		def, ok := r[kind]
		if !ok {
			continue
		}
		for _, step := range def.Steps {
			if _, dup := seen[step.Stage.Name()]; dup {
				continue
			}
			seen[step.Stage.Name()] = struct{}{}
			out = append(out, step.Stage)
		}
	}
	return out
}

// Capabilities bundles the external services the stages call.
type Capabilities struct {
	Audio      *whisperx.Service
	Classifier EmotionClassifier
	Generator  TextGenerator
	Extractor  KeywordExtractor
}

// NewCapabilities constructs the production services once at startup.
func NewCapabilities(cfg *config.Config) Capabilities {
	client := llm.NewClient(llm.ConfigFrom(cfg.LLM))
	return Capabilities{
		Audio:      whisperx.NewService(whisperx.ConfigFrom(cfg.Transcription)),
		Classifier: emotion.NewClassifier(client),
		Generator:  narrative.NewGenerator(client),
		Extractor:  keywords.NewExtractor(keywords.OptionsFrom(cfg.Keywords)),
	}
}

// New builds the registry for both job kinds.
func New(cfg *config.Config, caps Capabilities) (Registry, error) {
	diary := DiaryDefinition(DiaryStages{
		Normalize:          NewNormalizeStage(caps.Audio, cfg.Paths.WorkDir, deps.FFmpeg(cfg.Transcription.FFmpegBinary)),
		Transcribe:         NewTranscribeStage(caps.Audio, deps.UVX(cfg.Transcription.UVXBinary)),
		ClassifyEmotion:    NewEmotionStage(caps.Classifier),
		GenerateNarrative:  NewNarrativeStage(caps.Generator),
		GenerateTitle:      NewTitleStage(caps.Generator),
		GenerateAdvice:     NewAdviceStage(caps.Generator),
		MinTranscriptChars: cfg.Workflow.MinTranscriptChars,
	})
	feedback := FeedbackDefinition(NewKeywordsStage(caps.Extractor), caps.Extractor)
	reg := Registry{
		jobs.KindDiaryAnalysis:    diary,
		jobs.KindFeedbackAnalysis: feedback,
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}
