package whisperx

import "vench/internal/config"

// Config captures runtime settings for WhisperX operations.
type Config struct {
	Model         string
	Language      string
	CUDAEnabled   bool
	MaxConcurrent int
	FFmpegBinary  string
	UVXBinary     string
}

// ConfigFrom maps the [transcription] config section.
func ConfigFrom(cfg config.Transcription) Config {
	return Config{
		Model:         cfg.Model,
		Language:      cfg.Language,
		CUDAEnabled:   cfg.CUDAEnabled,
		MaxConcurrent: cfg.MaxConcurrent,
		FFmpegBinary:  cfg.FFmpegBinary,
		UVXBinary:     cfg.UVXBinary,
	}
}

// WhisperX configuration constants.
const (
	DefaultModel      = "large-v3-turbo"
	DefaultLanguage   = "ko"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "4"
	ChunkSize         = "15"
	BeamSize          = "5"
	Temperature       = "0.0"
	SegmentResolution = "sentence"
	OutputFormat      = "json"
	VADMethod         = "silero"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "int8"
	SampleRate        = "16000"
)

// Command names for external tools.
const (
	UVXCommand    = "uvx"
	FFmpegCommand = "ffmpeg"
)
