package config

import "time"

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// LLMConfig configures the Gemini content-generation client.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Timeout     string  `yaml:"timeout"`     // applied only when the caller sets no deadline
	Temperature float64 `yaml:"temperature"` // 0 leaves the model default
}

// GetTimeout returns the LLM timeout as a duration.
func (c LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}
