package config

const (
	defaultDataDir             = "~/.local/share/vench"
	defaultUploadDir           = "~/.local/share/vench/uploads"
	defaultWorkDir             = "~/.local/share/vench/work"
	defaultLogDir              = "~/.local/share/vench/logs"
	defaultAPIBind             = "127.0.0.1:7590"
	defaultWorkers             = 2
	defaultQueueSize           = 64
	defaultHeartbeatInterval   = 15
	defaultMinTranscriptChars  = 5
	defaultWhisperXModel       = "large-v3-turbo"
	defaultTranscribeLanguage  = "ko"
	defaultMaxConcurrentSTT    = 1
	defaultFFmpegBinary        = "ffmpeg"
	defaultUVXBinary           = "uvx"
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMReferer          = "https://github.com/vench/vench"
	defaultLLMTitle            = "Vench Diary Analysis"
	defaultLLMTimeoutSeconds   = 60
	defaultKeywordTopN         = 3
	defaultMinCommentChars     = 4
	defaultMinTokenChars       = 2
	defaultKeywordModelVersion = "morph-v1"
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			UploadDir: defaultUploadDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueueSize:          defaultQueueSize,
			HeartbeatInterval:  defaultHeartbeatInterval,
			MinTranscriptChars: defaultMinTranscriptChars,
		},
		Transcription: Transcription{
			Model:         defaultWhisperXModel,
			Language:      defaultTranscribeLanguage,
			MaxConcurrent: defaultMaxConcurrentSTT,
			FFmpegBinary:  defaultFFmpegBinary,
			UVXBinary:     defaultUVXBinary,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Keywords: Keywords{
			TopN:            defaultKeywordTopN,
			MinCommentChars: defaultMinCommentChars,
			MinTokenChars:   defaultMinTokenChars,
			ModelVersion:    defaultKeywordModelVersion,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
