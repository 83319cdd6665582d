package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models chancur.yml. The Slack token itself never lives here; it is
// always read from the environment.
type Config struct {
	Slack struct {
		TokenEnv  string   `yaml:"token_env"`
		PageSize  int      `yaml:"page_size"`
		RatePause Duration `yaml:"rate_pause"`
		RetryCap  int      `yaml:"retry_cap"`
	} `yaml:"slack"`
	Cache struct {
		TTL           Duration `yaml:"ttl"`
		ActivityBatch int      `yaml:"activity_batch"`
	} `yaml:"cache"`
	Protected      []string `yaml:"protected_channels"`
	RedirectNotice string   `yaml:"redirect_notice"`
}

// Duration wraps time.Duration for yaml values like "24h" or "1s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Slack.TokenEnv == "" {
		return fmt.Errorf("config.slack.token_env is required")
	}
	if c.Slack.PageSize < 1 || c.Slack.PageSize > 1000 {
		return fmt.Errorf("config.slack.page_size must be between 1 and 1000")
	}
	if c.Slack.RetryCap < 1 {
		return fmt.Errorf("config.slack.retry_cap must be at least 1")
	}
	if c.Cache.TTL.Std() <= 0 {
		return fmt.Errorf("config.cache.ttl must be positive")
	}
	if c.Cache.ActivityBatch < 1 {
		return fmt.Errorf("config.cache.activity_batch must be at least 1")
	}
	for _, name := range c.Protected {
		if name == "" {
			return fmt.Errorf("config.protected_channels contains an empty name")
		}
	}
	if c.RedirectNotice == "" {
		return fmt.Errorf("config.redirect_notice is required")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "chancur.yml")
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

const defaultTemplate = `slack:
  token_env: SLACK_TOKEN
  page_size: 200
  rate_pause: 1s
  retry_cap: 3

cache:
  ttl: 24h
  activity_batch: 10

protected_channels:
  - general

redirect_notice: "This channel is being archived. Please join #%s to continue the discussion."
`
