package pipeline

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"vench/internal/deps"
	"vench/internal/jobs"
	"vench/internal/services"
	"vench/internal/stage"
)

// Stage names, used in logs and logging.stage_overrides.
const (
	StageNormalize         = "normalize"
	StageTranscribe        = "transcribe"
	StageClassifyEmotion   = "classify_emotion"
	StageGenerateNarrative = "generate_narrative"
	StageGenerateTitle     = "generate_title"
	StageGenerateAdvice    = "generate_advice"
	StageExtractKeywords   = "extract_keywords"
)

const normalizedFileName = "audio.wav"

// jobWorkDir is the per-job scratch directory under the work root.
func jobWorkDir(root string, snap stage.Snapshot) string {
	name := strings.TrimSpace(snap.UUID)
	if name == "" {
		name = strconv.FormatInt(snap.JobID, 10)
	}
	return filepath.Join(root, name)
}

// NormalizeStage converts the uploaded recording to 16 kHz mono WAV.
type NormalizeStage struct {
	audio   AudioNormalizer
	workDir string
	tools   []deps.Tool
}

func NewNormalizeStage(audio AudioNormalizer, workDir string, tools ...deps.Tool) *NormalizeStage {
	return &NormalizeStage{audio: audio, workDir: workDir, tools: tools}
}

func (s *NormalizeStage) Name() string  { return StageNormalize }
func (s *NormalizeStage) Label() string { return "Converting audio" }

func (s *NormalizeStage) Run(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
	if snap.Input.Diary == nil {
		return jobs.Output{}, services.Wrap(services.ErrValidation, StageNormalize, "input", "Diary input is missing", nil)
	}
	dest := filepath.Join(jobWorkDir(s.workDir, snap), normalizedFileName)
	if err := s.audio.Normalize(ctx, snap.Input.Diary.AudioPath, dest); err != nil {
		return jobs.Output{}, err
	}
	return jobs.Output{NormalizedAudio: dest}, nil
}

func (s *NormalizeStage) HealthCheck(context.Context) stage.Health {
	return checkBinaries(StageNormalize, s.tools)
}

// TranscribeStage runs speech recognition on the normalized audio.
type TranscribeStage struct {
	transcriber Transcriber
	tools       []deps.Tool
}

func NewTranscribeStage(transcriber Transcriber, tools ...deps.Tool) *TranscribeStage {
	return &TranscribeStage{transcriber: transcriber, tools: tools}
}

func (s *TranscribeStage) Name() string  { return StageTranscribe }
func (s *TranscribeStage) Label() string { return "Transcribing speech" }

// Run leaves Transcript unset when nothing was recognized; the guard on the
// next step turns that into a failure.
func (s *TranscribeStage) Run(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
	wav := snap.Output.NormalizedAudio
	if wav == "" {
		return jobs.Output{}, services.Wrap(services.ErrValidation, StageTranscribe, "input", "Normalized audio is missing", nil)
	}
	text, err := s.transcriber.Transcribe(ctx, wav, filepath.Dir(wav))
	if err != nil {
		return jobs.Output{}, err
	}
	return jobs.Output{Transcript: strings.TrimSpace(text)}, nil
}

func (s *TranscribeStage) HealthCheck(context.Context) stage.Health {
	return checkBinaries(StageTranscribe, s.tools)
}

// EmotionStage scores the transcript and records the dominant label.
type EmotionStage struct {
	classifier EmotionClassifier
}

func NewEmotionStage(classifier EmotionClassifier) *EmotionStage {
	return &EmotionStage{classifier: classifier}
}

func (s *EmotionStage) Name() string  { return StageClassifyEmotion }
func (s *EmotionStage) Label() string { return "Analyzing emotion" }

func (s *EmotionStage) Run(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
	vec, err := s.classifier.Classify(ctx, snap.Output.Transcript)
	if err != nil {
		return jobs.Output{}, err
	}
	if err := vec.Validate(); err != nil {
		return jobs.Output{}, services.Wrap(services.ErrExternalTool, StageClassifyEmotion, "validate", "Classifier returned invalid scores", err)
	}
	return jobs.Output{Emotions: vec, EmotionLabel: vec.Dominant()}, nil
}

func (s *EmotionStage) HealthCheck(context.Context) stage.Health {
	return checkReady(StageClassifyEmotion, s.classifier.Ready())
}

// NarrativeStage rewrites the transcript as a diary entry.
type NarrativeStage struct {
	generator TextGenerator
}

func NewNarrativeStage(generator TextGenerator) *NarrativeStage {
	return &NarrativeStage{generator: generator}
}

func (s *NarrativeStage) Name() string  { return StageGenerateNarrative }
func (s *NarrativeStage) Label() string { return "Writing diary entry" }

func (s *NarrativeStage) Run(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
	text, err := s.generator.Narrative(ctx, snap.Output.Transcript, snap.Output.Emotions)
	if err != nil {
		return jobs.Output{}, err
	}
	return jobs.Output{Narrative: text}, nil
}

func (s *NarrativeStage) HealthCheck(context.Context) stage.Health {
	return checkReady(StageGenerateNarrative, s.generator.Ready())
}

// TitleStage names the generated narrative.
type TitleStage struct {
	generator TextGenerator
}

func NewTitleStage(generator TextGenerator) *TitleStage {
	return &TitleStage{generator: generator}
}

func (s *TitleStage) Name() string  { return StageGenerateTitle }
func (s *TitleStage) Label() string { return "Choosing a title" }

func (s *TitleStage) Run(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
	title, err := s.generator.Title(ctx, snap.Output.Narrative)
	if err != nil {
		return jobs.Output{}, err
	}
	return jobs.Output{Title: title}, nil
}

func (s *TitleStage) HealthCheck(context.Context) stage.Health {
	return checkReady(StageGenerateTitle, s.generator.Ready())
}

// AdviceStage writes a supportive note for the writer.
type AdviceStage struct {
	generator TextGenerator
}

func NewAdviceStage(generator TextGenerator) *AdviceStage {
	return &AdviceStage{generator: generator}
}

func (s *AdviceStage) Name() string  { return StageGenerateAdvice }
func (s *AdviceStage) Label() string { return "Writing advice" }

func (s *AdviceStage) Run(ctx context.Context, snap stage.Snapshot) (jobs.Output, error) {
	advice, err := s.generator.Advice(ctx, snap.Output.Transcript, snap.Output.Emotions)
	if err != nil {
		return jobs.Output{}, err
	}
	return jobs.Output{Advice: advice}, nil
}

func (s *AdviceStage) HealthCheck(context.Context) stage.Health {
	return checkReady(StageGenerateAdvice, s.generator.Ready())
}

func checkBinaries(name string, tools []deps.Tool) stage.Health {
	if err := deps.Unavailable(deps.CheckBinaries(tools...)); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

func checkReady(name string, ready bool) stage.Health {
	if !ready {
		return stage.Unhealthy(name, "LLM api key not configured")
	}
	return stage.Healthy(name)
}
