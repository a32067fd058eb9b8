package config

const (
	defaultConfigPath            = "~/.config/videoinsight/config.toml"
	defaultOutputDir             = "~/Documents/VideoInsight"
	defaultLogDir                = "~/.local/share/videoinsight/logs"
	defaultDataDir               = "~/.local/share/videoinsight"
	defaultAPIBind               = "127.0.0.1:8000"
	defaultDevice                = "auto"
	defaultModel                 = "base"
	defaultLanguage              = "zh"
	defaultQuantization          = "q5_1"
	defaultModelBaseURL          = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"
	defaultWhisperCPPBinary      = "whisper-cli"
	defaultUVXBinary             = "uvx"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultDownloaderTimeout     = 300
	defaultDownloaderMaxRetries  = 3
	defaultDownloaderUserAgent   = "VideoInsight/1.0"
	defaultSummaryProvider       = "openai"
	defaultSummaryBaseURL        = "https://api.minimaxi.com/v1"
	defaultSummaryModel          = "abab6.5s-chat"
	defaultSummaryMaxTokens      = 4096
	defaultSummaryTimeoutSeconds = 120
	defaultSummaryExportFormat   = "markdown"
	defaultSummaryTemplateID     = "study"
	defaultWatchMaxConcurrent    = 2
	defaultWatchSettleMillis     = 500
	defaultEventsQueueSize       = 256
	defaultNtfyRequestTimeout    = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// DefaultTemplates returns the built-in summary prompts.
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:     "study",
			Name:   "学习笔记",
			Prompt: "请将以下视频内容整理成学习笔记格式，包含：\n1. 核心概念\n2. 关键要点\n3. 实践建议\n4. 思考题",
		},
		{
			ID:     "summary",
			Name:   "要点提取",
			Prompt: "请提取视频的核心要点，以简洁的列表形式呈现，每个要点用一句话总结。",
		},
		{
			ID:     "detail",
			Name:   "详细记录",
			Prompt: "请详细记录视频内容，保留所有重要信息和细节。按时间顺序组织内容。",
		},
		{
			ID:     "qa",
			Name:   "问答格式",
			Prompt: "请将视频内容整理成问答格式，提取关键问题和答案。",
		},
		{
			ID:     "mindmap",
			Name:   "思维导图",
			Prompt: "请将视频内容整理成思维导图结构，使用 Markdown 格式的层级列表。",
		},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:     defaultOutputDir,
			LogDir:        defaultLogDir,
			DataDir:       defaultDataDir,
			ModelCacheDir: defaultModelCacheDir(),
			APIBind:       defaultAPIBind,
		},
		Transcription: Transcription{
			Device:           defaultDevice,
			Model:            defaultModel,
			Language:         defaultLanguage,
			Quantization:     defaultQuantization,
			ModelBaseURL:     defaultModelBaseURL,
			WhisperCPPBinary: defaultWhisperCPPBinary,
			UVXBinary:        defaultUVXBinary,
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
		},
		Downloader: Downloader{
			TimeoutSeconds: defaultDownloaderTimeout,
			MaxRetries:     defaultDownloaderMaxRetries,
			UserAgent:      defaultDownloaderUserAgent,
		},
		Summary: Summary{
			Provider:       defaultSummaryProvider,
			BaseURL:        defaultSummaryBaseURL,
			Model:          defaultSummaryModel,
			MaxTokens:      defaultSummaryMaxTokens,
			TimeoutSeconds: defaultSummaryTimeoutSeconds,
			ExportFormat:   defaultSummaryExportFormat,
			TemplateID:     defaultSummaryTemplateID,
		},
		Watch: Watch{
			MaxConcurrent: defaultWatchMaxConcurrent,
			SettleMillis:  defaultWatchSettleMillis,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Events: Events{
			QueueSize: defaultEventsQueueSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
