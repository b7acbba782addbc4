// Package config loads the service configuration from a YAML file with
// environment fallbacks for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr     = ":8080"
	defaultDatabasePath   = "crewdesk.db"
	defaultModel          = "gpt-4o-mini"
	defaultHistoryWindow  = 20
	defaultMaxMessageSize = 2000
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// HistoryWindow is how many persisted turns are replayed into the
	// agent context per request.
	HistoryWindow int `yaml:"history_window"`

	// MaxMessageSize bounds inbound chat message length in characters.
	MaxMessageSize int `yaml:"max_message_size"`
}

// LLMConfig configures the OpenAI-compatible provider.
type LLMConfig struct {
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	Model              string `yaml:"model"`
	SummarizationModel string `yaml:"summarization_model"`

	// ClassifierEnabled turns on model-based routing refinement for
	// messages the keyword tables cannot classify.
	ClassifierEnabled bool `yaml:"classifier_enabled"`
}

// ContextConfig overrides the conversation compaction thresholds.
// Zero values keep the built-in defaults.
type ContextConfig struct {
	SummaryTrigger int `yaml:"summary_trigger"`
	ContextLimit   int `yaml:"context_limit"`
	RecentWindow   int `yaml:"recent_window"`
	TruncateLength int `yaml:"truncate_length"`
}

// RouterConfig optionally replaces the built-in keyword tables.
type RouterConfig struct {
	OrderKeywords   []string `yaml:"order_keywords"`
	BillingKeywords []string `yaml:"billing_keywords"`
}

// Config is the full service configuration.
type Config struct {
	Server       ServerConfig  `yaml:"server"`
	DatabasePath string        `yaml:"database_path"`
	LLM          LLMConfig     `yaml:"llm"`
	Context      ContextConfig `yaml:"context"`
	Router       RouterConfig  `yaml:"router"`
}

// Default returns a configuration with all defaults applied and
// secrets pulled from the environment.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path and applies defaults and
// environment fallbacks. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	if c.Server.HistoryWindow <= 0 {
		c.Server.HistoryWindow = defaultHistoryWindow
	}
	if c.Server.MaxMessageSize <= 0 {
		c.Server.MaxMessageSize = defaultMaxMessageSize
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaultDatabasePath
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultModel
	}
}

// Validate reports configuration problems that would prevent startup.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api_key is required (set it in the config file or OPENAI_API_KEY)")
	}
	if c.Context.SummaryTrigger < 0 || c.Context.ContextLimit < 0 ||
		c.Context.RecentWindow < 0 || c.Context.TruncateLength < 0 {
		return fmt.Errorf("context thresholds must not be negative")
	}
	return nil
}
