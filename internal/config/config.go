package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	TempDir       string `toml:"temp_dir" yaml:"temp_dir"`
	OutputDir     string `toml:"output_dir" yaml:"output_dir"`
	LogDir        string `toml:"log_dir" yaml:"log_dir"`
	DataDir       string `toml:"data_dir" yaml:"data_dir"`
	ModelCacheDir string `toml:"model_cache_dir" yaml:"model_cache_dir"`
	APIBind       string `toml:"api_bind" yaml:"api_bind"`
}

// Transcription contains speech recognition backend settings.
type Transcription struct {
	// Device selects the backend: auto probes hardware, cpu pins the quantized
	// whisper.cpp backend, gpu prefers WhisperX on CUDA.
	Device           string `toml:"device" yaml:"device"`
	Model            string `toml:"model" yaml:"model"`
	Language         string `toml:"language" yaml:"language"`
	Threads          int    `toml:"threads" yaml:"threads"`
	Quantization     string `toml:"quantization" yaml:"quantization"`
	ModelBaseURL     string `toml:"model_base_url" yaml:"model_base_url"`
	WhisperCPPBinary string `toml:"whispercpp_binary" yaml:"whispercpp_binary"`
	UVXBinary        string `toml:"uvx_binary" yaml:"uvx_binary"`
	FFmpegBinary     string `toml:"ffmpeg_binary" yaml:"ffmpeg_binary"`
	FFprobeBinary    string `toml:"ffprobe_binary" yaml:"ffprobe_binary"`
	HuggingFaceToken string `toml:"hf_token" yaml:"hf_token"`
}

// Downloader contains remote source acquisition settings.
type Downloader struct {
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries" yaml:"max_retries"`
	UserAgent      string `toml:"user_agent" yaml:"user_agent"`
}

// Summary contains settings for the optional summarize-and-export step.
type Summary struct {
	Enabled        bool   `toml:"enabled" yaml:"enabled"`
	Provider       string `toml:"provider" yaml:"provider"`
	APIKey         string `toml:"api_key" yaml:"api_key"`
	BaseURL        string `toml:"base_url" yaml:"base_url"`
	Model          string `toml:"model" yaml:"model"`
	MaxTokens      int    `toml:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	ExportFormat   string `toml:"export_format" yaml:"export_format"`
	TemplateID     string `toml:"template_id" yaml:"template_id"`
}

// Template is a named summary prompt.
type Template struct {
	ID     string `toml:"id" yaml:"id"`
	Name   string `toml:"name" yaml:"name"`
	Prompt string `toml:"prompt" yaml:"prompt"`
}

// Watch contains inbox directory watcher settings.
type Watch struct {
	Dir           string `toml:"dir" yaml:"dir"`
	MaxConcurrent int    `toml:"max_concurrent" yaml:"max_concurrent"`
	SettleMillis  int    `toml:"settle_millis" yaml:"settle_millis"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	// NtfyTopic is the full topic URL, e.g. https://ntfy.sh/my-videos.
	NtfyTopic      string `toml:"ntfy_topic" yaml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout" yaml:"request_timeout"`
}

// Events contains broadcast channel settings.
type Events struct {
	QueueSize int `toml:"queue_size" yaml:"queue_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
}

// Config encapsulates all configuration values for Video Insight.
//
// Configuration sections by subsystem:
//   - Paths: working, output and cache directories plus the API bind address
//   - Transcription: backend selection, model and external binaries
//   - Downloader: remote source timeouts and retries
//   - Summary: chat provider used to turn transcripts into notes
//   - Templates: summary prompts selectable per task
//   - Watch: inbox directory watcher
//   - Notifications: ntfy push notifications for finished tasks
//   - Events: broadcast queue sizing
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths" yaml:"paths"`
	Transcription Transcription `toml:"transcription" yaml:"transcription"`
	Downloader    Downloader    `toml:"downloader" yaml:"downloader"`
	Summary       Summary       `toml:"summary" yaml:"summary"`
	Templates     []Template    `toml:"templates" yaml:"templates"`
	Watch         Watch         `toml:"watch" yaml:"watch"`
	Notifications Notifications `toml:"notifications" yaml:"notifications"`
	Events        Events        `toml:"events" yaml:"events"`
	Logging       Logging       `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := decode(file, resolvedPath, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decode(r io.Reader, path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(r)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		return toml.NewDecoder(r).Decode(cfg)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("videoinsight.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so transcription keeps working
// when the export location is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TempDir, c.Paths.LogDir, c.Paths.DataDir, c.Paths.ModelCacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// Template returns the summary template with the given id.
func (c *Config) Template(id string) (Template, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, tpl := range c.Templates {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return Template{}, false
}

// HistoryPath returns the location of the run history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// LockPath returns the location of the daemon single-instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "videoinsight.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultModelCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "videoinsight", "models")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/videoinsight/models"
	}
	return filepath.Join(home, ".cache", "videoinsight", "models")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	redacted := *c
	if redacted.Summary.APIKey != "" {
		redacted.Summary.APIKey = "********"
	}
	if redacted.Transcription.HuggingFaceToken != "" {
		redacted.Transcription.HuggingFaceToken = "********"
	}
	encoder := toml.NewEncoder(w)
	encoder.SetIndentTables(true)
	return encoder.Encode(redacted)
}
