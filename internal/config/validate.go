package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSummary(); err != nil {
		return err
	}
	if topic := c.Notifications.NtfyTopic; topic != "" &&
		!strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	if len(c.Templates) == 0 {
		return errors.New("templates must include at least one entry")
	}
	if err := ensurePositiveMap(map[string]int{
		"downloader.timeout_seconds": c.Downloader.TimeoutSeconds,
		"watch.max_concurrent":       c.Watch.MaxConcurrent,
		"events.queue_size":          c.Events.QueueSize,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Device {
	case "auto", "cpu", "gpu":
	default:
		return fmt.Errorf("transcription.device must be one of auto, cpu, gpu (got %q)", c.Transcription.Device)
	}
	if strings.TrimSpace(c.Transcription.Model) == "" {
		return errors.New("transcription.model must be set")
	}
	if c.Transcription.Threads <= 0 {
		return errors.New("transcription.threads must be positive")
	}
	return nil
}

func (c *Config) validateSummary() error {
	switch c.Summary.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("summary.provider must be openai or gemini (got %q)", c.Summary.Provider)
	}
	switch c.Summary.ExportFormat {
	case "markdown", "docx":
	default:
		return fmt.Errorf("summary.export_format must be markdown or docx (got %q)", c.Summary.ExportFormat)
	}
	if !c.Summary.Enabled {
		return nil
	}
	if c.Summary.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("summary.api_key is required when summary.enabled is true. Set SUMMARY_API_KEY or edit %s (create with 'videoinsight config init')", defaultPath)
	}
	if _, ok := c.Template(c.Summary.TemplateID); !ok {
		return fmt.Errorf("summary.template_id %q does not match any template", c.Summary.TemplateID)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
