// Package config handles Wayfarer configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/wayfarer/config.yaml, /etc/wayfarer/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wayfarer", "config.yaml"))
	}

	paths = append(paths, "/etc/wayfarer/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Wayfarer configuration.
type Config struct {
	Listen        ListenConfig        `yaml:"listen"`
	Model         ModelConfig         `yaml:"model"`
	Agent         AgentConfig         `yaml:"agent"`
	Places        PlacesConfig        `yaml:"places"`
	Events        EventsConfig        `yaml:"events"`
	Search        SearchConfig        `yaml:"search"`
	Conversations ConversationsConfig `yaml:"conversations"`
	DataDir       string              `yaml:"data_dir"`
	LogLevel      string              `yaml:"log_level"`
	LogFormat     string              `yaml:"log_format"` // text (default) or json
}

// ListenConfig defines the session gateway server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ModelConfig defines the reasoning model provider settings.
type ModelConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"` // optional OpenAI-compatible endpoint
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
}

// AgentConfig tunes the decision loop.
type AgentConfig struct {
	// MaxRounds caps Reasoning/Acting cycles per user message. When the
	// model keeps requesting tools past this bound, the loop terminates
	// with a deterministic apology instead of spinning forever.
	MaxRounds int `yaml:"max_rounds"`
}

// PlacesConfig defines the place-search provider settings.
type PlacesConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // override for tests; default is the public API
}

// EventsConfig defines the city event listing provider settings.
type EventsConfig struct {
	BaseURL string `yaml:"base_url"`
	// CacheTTLSec is the scrape cache window in seconds (default 3600).
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// CacheTTL returns the scrape cache window as a duration.
func (c EventsConfig) CacheTTL() time.Duration {
	if c.CacheTTLSec <= 0 {
		return time.Hour
	}
	return time.Duration(c.CacheTTLSec) * time.Second
}

// SearchConfig defines the generic web search provider settings.
type SearchConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ConversationsConfig defines the conversation store lifecycle rules.
type ConversationsConfig struct {
	// Backend selects the store implementation: "memory" (default) or "sqlite".
	Backend string `yaml:"backend"`
	// IdleTTLSec evicts in-memory conversations idle longer than this
	// many seconds. Zero disables eviction.
	IdleTTLSec int `yaml:"idle_ttl_sec"`
	// MaxThreads caps the number of live in-memory conversations. Zero means unlimited.
	MaxThreads int `yaml:"max_threads"`
}

// IdleTTL returns the conversation idle eviction window as a duration.
func (c ConversationsConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLSec) * time.Second
}

// Load reads configuration from a YAML file. Environment variables in
// the file body ($VAR or ${VAR}) are expanded before parsing, so API
// keys can stay out of the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Model: ModelConfig{
			Name:        "gpt-4.1",
			Temperature: 0.1,
		},
		Agent: AgentConfig{MaxRounds: 8},
		Conversations: ConversationsConfig{
			Backend: "memory",
		},
		DataDir: "data",
	}
}

// Validate checks the configuration for fatal problems. A missing
// reasoning-model credential is a configuration error and fails fast;
// missing provider credentials are not — they degrade that single tool
// to error responses at runtime.
func (c *Config) Validate() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("model.api_key is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Agent.MaxRounds <= 0 {
		return fmt.Errorf("agent.max_rounds must be positive (got %d)", c.Agent.MaxRounds)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	switch c.Conversations.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown conversations.backend %q (valid: memory, sqlite)", c.Conversations.Backend)
	}
	return nil
}
