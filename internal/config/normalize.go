package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeDownloader()
	c.normalizeSummary()
	c.normalizeTemplates()
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
	if c.Events.QueueSize <= 0 {
		c.Events.QueueSize = defaultEventsQueueSize
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = os.TempDir()
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ModelCacheDir) == "" {
		c.Paths.ModelCacheDir = defaultModelCacheDir()
	}
	if c.Paths.ModelCacheDir, err = expandPath(c.Paths.ModelCacheDir); err != nil {
		return fmt.Errorf("paths.model_cache_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Device = strings.ToLower(strings.TrimSpace(t.Device))
	switch t.Device {
	case "":
		t.Device = defaultDevice
	case "accelerated", "cuda":
		t.Device = "gpu"
	}
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		t.Model = defaultModel
	}
	t.Language = strings.ToLower(strings.TrimSpace(t.Language))
	if t.Language == "" {
		t.Language = defaultLanguage
	}
	if t.Threads <= 0 {
		t.Threads = runtime.NumCPU()
	}
	t.Quantization = strings.ToLower(strings.TrimSpace(t.Quantization))
	if t.Quantization == "" {
		t.Quantization = defaultQuantization
	}
	t.ModelBaseURL = strings.TrimRight(strings.TrimSpace(t.ModelBaseURL), "/")
	if t.ModelBaseURL == "" {
		t.ModelBaseURL = defaultModelBaseURL
	}
	t.WhisperCPPBinary = defaultString(t.WhisperCPPBinary, defaultWhisperCPPBinary)
	t.UVXBinary = defaultString(t.UVXBinary, defaultUVXBinary)
	t.FFmpegBinary = defaultString(t.FFmpegBinary, defaultFFmpegBinary)
	t.FFprobeBinary = defaultString(t.FFprobeBinary, defaultFFprobeBinary)
	t.HuggingFaceToken = strings.TrimSpace(t.HuggingFaceToken)
	if t.HuggingFaceToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			t.HuggingFaceToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			t.HuggingFaceToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeDownloader() {
	if c.Downloader.TimeoutSeconds <= 0 {
		c.Downloader.TimeoutSeconds = defaultDownloaderTimeout
	}
	if c.Downloader.MaxRetries < 0 {
		c.Downloader.MaxRetries = 0
	}
	c.Downloader.UserAgent = defaultString(c.Downloader.UserAgent, defaultDownloaderUserAgent)
}

func (c *Config) normalizeSummary() {
	s := &c.Summary
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		s.Provider = defaultSummaryProvider
	}
	s.BaseURL = strings.TrimSpace(s.BaseURL)
	if s.BaseURL == "" && s.Provider == "openai" {
		s.BaseURL = defaultSummaryBaseURL
	}
	s.Model = defaultString(s.Model, defaultSummaryModel)
	if s.MaxTokens <= 0 {
		s.MaxTokens = defaultSummaryMaxTokens
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaultSummaryTimeoutSeconds
	}
	s.ExportFormat = strings.ToLower(strings.TrimSpace(s.ExportFormat))
	if s.ExportFormat == "" {
		s.ExportFormat = defaultSummaryExportFormat
	}
	s.TemplateID = strings.ToLower(strings.TrimSpace(s.TemplateID))
	if s.TemplateID == "" {
		s.TemplateID = defaultSummaryTemplateID
	}
	s.APIKey = strings.TrimSpace(s.APIKey)
	if s.APIKey == "" {
		envKeys := []string{"SUMMARY_API_KEY", "MINIMAX_API_KEY", "OPENAI_API_KEY"}
		if s.Provider == "gemini" {
			envKeys = []string{"SUMMARY_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"}
		}
		for _, key := range envKeys {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				s.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
}

func (c *Config) normalizeTemplates() {
	if len(c.Templates) == 0 {
		c.Templates = DefaultTemplates()
		return
	}
	out := make([]Template, 0, len(c.Templates))
	seen := make(map[string]struct{}, len(c.Templates))
	for _, tpl := range c.Templates {
		tpl.ID = strings.ToLower(strings.TrimSpace(tpl.ID))
		tpl.Name = strings.TrimSpace(tpl.Name)
		tpl.Prompt = strings.TrimSpace(tpl.Prompt)
		if tpl.ID == "" {
			continue
		}
		if _, exists := seen[tpl.ID]; exists {
			continue
		}
		seen[tpl.ID] = struct{}{}
		if tpl.Name == "" {
			tpl.Name = tpl.ID
		}
		out = append(out, tpl)
	}
	c.Templates = out
}

func (c *Config) normalizeWatch() error {
	var err error
	if c.Watch.Dir, err = expandPath(strings.TrimSpace(c.Watch.Dir)); err != nil {
		return fmt.Errorf("watch.dir: %w", err)
	}
	if c.Watch.MaxConcurrent <= 0 {
		c.Watch.MaxConcurrent = defaultWatchMaxConcurrent
	}
	if c.Watch.SettleMillis < 0 {
		c.Watch.SettleMillis = 0
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
