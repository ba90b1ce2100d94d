package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration. Secrets (JWT_SECRET,
// GEMINI_API_KEY, ELEVEN_LABS_API_KEY, GOOGLE_APPLICATION_CREDENTIALS) never
// live in the YAML file; they are read from the environment by the adapters.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Audio    AudioConfig    `yaml:"audio"`
	Speech   SpeechConfig   `yaml:"speech"`
	LLM      LLMConfig      `yaml:"llm"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// PipelineConfig contains voice pipeline configuration
type PipelineConfig struct {
	Workers    int `yaml:"workers"`
	RunTimeout int `yaml:"run_timeout"` // seconds
}

// DecoderConfig contains external decoder configuration
type DecoderConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	Timeout    int    `yaml:"timeout"` // seconds
}

// AudioConfig contains recording archive configuration
type AudioConfig struct {
	ArchiveDir string `yaml:"archive_dir"` // empty disables archiving
}

// SpeechConfig contains speech recognition configuration
type SpeechConfig struct {
	Language string `yaml:"language"`
	Mock     bool   `yaml:"mock"` // use mock speech services instead of cloud APIs
}

// LLMConfig contains language model configuration
type LLMConfig struct {
	Model string `yaml:"model"` // empty uses the adapter default
}

// Load builds the configuration in three layers: the YAML file when path
// names one that exists, then environment overrides, then defaults for
// whatever is still unset. The result is validated before being returned.
func Load(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitAndTrim(origins)
	}
	if workers := os.Getenv("PIPELINE_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			c.Pipeline.Workers = w
		}
	}
	if path := os.Getenv("FFMPEG_PATH"); path != "" {
		c.Decoder.FFmpegPath = path
	}
	if dir := os.Getenv("ARCHIVE_DIR"); dir != "" {
		c.Audio.ArchiveDir = dir
	}
	if lang := os.Getenv("STT_LANGUAGE"); lang != "" {
		c.Speech.Language = lang
	}
	if mock := os.Getenv("MOCK_SPEECH"); mock != "" {
		if m, err := strconv.ParseBool(mock); err == nil {
			c.Speech.Mock = m
		}
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.RunTimeout == 0 {
		c.Pipeline.RunTimeout = 120
	}
	if c.Decoder.FFmpegPath == "" {
		c.Decoder.FFmpegPath = "ffmpeg"
	}
	if c.Decoder.Timeout == 0 {
		c.Decoder.Timeout = 30
	}
	if c.Speech.Language == "" {
		c.Speech.Language = "en-US"
	}
}

// Validate performs validation of the assembled configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("decoder config: %w", err)
	}

	if err := c.Speech.Validate(); err != nil {
		return fmt.Errorf("speech config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", p.Workers)
	}

	if p.RunTimeout < 1 {
		return fmt.Errorf("run_timeout must be at least 1 second, got %d", p.RunTimeout)
	}

	return nil
}

// Validate validates decoder configuration
func (d *DecoderConfig) Validate() error {
	if d.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg_path cannot be empty")
	}

	if d.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", d.Timeout)
	}

	return nil
}

// Validate validates speech configuration
func (s *SpeechConfig) Validate() error {
	if s.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	return nil
}

// GetRunTimeout returns the pipeline run timeout as a time.Duration
func (p *PipelineConfig) GetRunTimeout() time.Duration {
	return time.Duration(p.RunTimeout) * time.Second
}

// GetTimeout returns the decoder timeout as a time.Duration
func (d *DecoderConfig) GetTimeout() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
