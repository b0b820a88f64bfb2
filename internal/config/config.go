package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"studioline/internal/domain"
)

// Config models studioline.yml, the studio policy document.
type Config struct {
	Studio struct {
		ID   string `yaml:"id" json:"id"`
		Name string `yaml:"name" json:"name"`
	} `yaml:"studio" json:"studio"`
	Formats struct {
		MultiRoleCap     int                   `yaml:"multi_role_cap" json:"multi_role_cap"`
		IntakeCharacters map[domain.Format]int `yaml:"intake_characters" json:"intake_characters"`
	} `yaml:"formats" json:"formats"`
	Workflow struct {
		AllowBackward     bool `yaml:"allow_backward" json:"allow_backward"`
		AllowSkip         bool `yaml:"allow_skip" json:"allow_skip"`
		LockAfterDelivery bool `yaml:"lock_after_delivery" json:"lock_after_delivery"`
	} `yaml:"workflow" json:"workflow"`
	Contracts struct {
		AllowRevert     bool `yaml:"allow_revert" json:"allow_revert"`
		AnnotateReverts bool `yaml:"annotate_reverts" json:"annotate_reverts"`
	} `yaml:"contracts" json:"contracts"`
	Matching struct {
		Weights MatchWeights `yaml:"weights" json:"weights"`
		Limit   int          `yaml:"limit" json:"limit"`
	} `yaml:"matching" json:"matching"`
	Store struct {
		RetryAttempts         int `yaml:"retry_attempts" json:"retry_attempts"`
		RequestTimeoutSeconds int `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
	} `yaml:"store" json:"store"`
	Notifications Notifications `yaml:"notifications" json:"notifications"`
}

type MatchWeights struct {
	Gender float64 `yaml:"gender" json:"gender"`
	Age    float64 `yaml:"age" json:"age"`
	Vocal  float64 `yaml:"vocal" json:"vocal"`
}

type Notifications struct {
	WebhookURL     string `yaml:"webhook_url" json:"webhook_url"`
	Secret         string `yaml:"secret" json:"secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

const (
	maxRetryAttempts = 10
	defaultTimeout   = 10 * time.Second
)

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with sl config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Studio.ID == "" {
		return fmt.Errorf("config.studio.id is required")
	}
	if c.Formats.MultiRoleCap < 1 || c.Formats.MultiRoleCap > domain.MaxMultiRoles {
		return fmt.Errorf("config.formats.multi_role_cap must be between 1 and %d", domain.MaxMultiRoles)
	}
	for _, f := range domain.Formats {
		n, ok := c.Formats.IntakeCharacters[f]
		if !ok {
			return fmt.Errorf("config.formats.intake_characters.%s is required", f)
		}
		if n < 1 || n > f.SlotCeiling(c.Formats.MultiRoleCap) {
			return fmt.Errorf("config.formats.intake_characters.%s must be between 1 and %d", f, f.SlotCeiling(c.Formats.MultiRoleCap))
		}
	}
	for f := range c.Formats.IntakeCharacters {
		if _, ok := domain.ParseFormat(string(f)); !ok {
			return fmt.Errorf("config.formats.intake_characters has unknown format %s", f)
		}
	}
	w := c.Matching.Weights
	if w.Gender < 0 || w.Age < 0 || w.Vocal < 0 {
		return fmt.Errorf("config.matching.weights must be non-negative")
	}
	if c.Matching.Limit < 1 {
		return fmt.Errorf("config.matching.limit must be positive")
	}
	if c.Store.RetryAttempts < 1 || c.Store.RetryAttempts > maxRetryAttempts {
		return fmt.Errorf("config.store.retry_attempts must be between 1 and %d", maxRetryAttempts)
	}
	if c.Store.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("config.store.request_timeout_seconds must not be negative")
	}
	if c.Notifications.WebhookURL != "" {
		u, err := url.Parse(c.Notifications.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.notifications.webhook_url must be an absolute http(s) url")
		}
	}
	if c.Notifications.TimeoutSeconds < 0 {
		return fmt.Errorf("config.notifications.timeout_seconds must not be negative")
	}
	return nil
}

// RequestTimeout is the bound applied to every store operation.
func (c *Config) RequestTimeout() time.Duration {
	if c == nil || c.Store.RequestTimeoutSeconds == 0 {
		return defaultTimeout
	}
	return time.Duration(c.Store.RequestTimeoutSeconds) * time.Second
}

// CharacterCount is the number of character_details an intake of format f must carry.
func (c *Config) CharacterCount(f domain.Format) int {
	if c != nil {
		if n, ok := c.Formats.IntakeCharacters[f]; ok {
			return n
		}
	}
	switch f {
	case domain.FormatSolo:
		return 1
	case domain.FormatDual, domain.FormatDuet:
		return 2
	case domain.FormatMulti:
		return 4
	}
	return 0
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "studioline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(studioID string) string {
	return fmt.Sprintf(defaultTemplate, studioID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a studio.
func Default(studioID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(studioID))).Decode(&cfg)
	cfg.Studio.ID = studioID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys that are
// absent keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default("")
	cfg.Studio.ID = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the config back to its file form.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

const defaultTemplate = `studio:
  id: %s
  name: ""

formats:
  multi_role_cap: 10
  intake_characters:
    Solo: 1
    Dual: 2
    Duet: 2
    Multi: 4

workflow:
  allow_backward: true
  allow_skip: true
  lock_after_delivery: false

contracts:
  allow_revert: true
  annotate_reverts: true

matching:
  weights:
    gender: 3
    age: 2
    vocal: 1
  limit: 10

store:
  retry_attempts: 5
  request_timeout_seconds: 10

notifications:
  webhook_url: ""
  secret: ""
  timeout_seconds: 5
`
