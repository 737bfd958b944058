package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config holds all iasmeen configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Gemini configuration
	LLM LLMConfig `yaml:"llm"`

	// Dashboard language, data locations, API server and export
	UI      UIConfig      `yaml:"ui"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Export  ExportConfig  `yaml:"export"`
	Batch   BatchConfig   `yaml:"batch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// UIConfig configures the dashboard.
type UIConfig struct {
	Language string `yaml:"language"` // fr, en
	DarkMode bool   `yaml:"dark_mode"`
}

// StorageConfig configures where history, usage and logs live.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	DatabaseFile string `yaml:"database_file"` // relative to DataDir unless absolute
}

// ServerConfig configures `iasmeen serve`.
type ServerConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	HistoryLimit  int    `yaml:"history_limit"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

// ExportConfig configures report export.
type ExportConfig struct {
	Dir       string `yaml:"dir"`
	ChromeBin string `yaml:"chrome_bin"` // empty lets go-rod find or download a browser
}

// BatchConfig configures `iasmeen batch`.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// SupportedLanguages lists the dashboard languages.
var SupportedLanguages = []string{"fr", "en"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "iasmeen",
		Version: "1.0.0",

		LLM: LLMConfig{
			Model:   DefaultModel,
			Timeout: "120s",
		},

		UI: UIConfig{
			Language: "fr",
		},

		Storage: StorageConfig{
			DataDir:      defaultDataDir(),
			DatabaseFile: "history.db",
		},

		Server: ServerConfig{
			ListenAddr:   ":8080",
			MaxUploadMB:  10,
			HistoryLimit: 50,
		},

		Export: ExportConfig{
			Dir: ".",
		},

		Batch: BatchConfig{
			Concurrency: 4,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".iasmeen"
	}
	return filepath.Join(home, ".iasmeen")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults when the file does not exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// GEMINI_API_KEY wins over API_KEY when both are set.
	if key := os.Getenv("API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("IASMEEN_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if lang := os.Getenv("IASMEEN_LANG"); lang != "" {
		c.UI.Language = lang
	}
	if dir := os.Getenv("IASMEEN_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
	if os.Getenv("IASMEEN_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// DatabasePath returns the absolute location of the history database.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Storage.DatabaseFile) {
		return c.Storage.DatabaseFile
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.DatabaseFile)
}

// LogsDir returns the directory used for debug logs.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Storage.DataDir, "logs")
}

// UsagePath returns the token usage file.
func (c *Config) UsagePath() string {
	return filepath.Join(c.Storage.DataDir, "usage.json")
}

// MaxUploadBytes returns the upload cap for the HTTP API.
func (c *Config) MaxUploadBytes() int64 {
	mb := c.Server.MaxUploadMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) << 20
}

// Validate validates the settings every command needs.
func (c *Config) Validate() error {
	if !slices.Contains(SupportedLanguages, c.UI.Language) {
		return fmt.Errorf("invalid language: %s (valid: %v)", c.UI.Language, SupportedLanguages)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	return nil
}

// ValidateLLM validates the settings needed to call Gemini.
func (c *Config) ValidateLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("Gemini API key not configured (set GEMINI_API_KEY or API_KEY, or llm.api_key)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	return nil
}
