// Package config loads the FitFact service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fitfact-ai/fitfact/pkg/models"
)

// Config holds all FitFact configuration.
type Config struct {
	Listen string       `yaml:"listen"`
	DBPath string       `yaml:"db_path"`
	PubMed PubMedConfig `yaml:"pubmed"`
	LLM    LLMConfig    `yaml:"llm"`
	Cache  CacheConfig  `yaml:"cache"`
	Sweep  SweepConfig  `yaml:"sweep"`
	Budget BudgetConfig `yaml:"budget"`
}

// PubMedConfig defines the literature API access.
type PubMedConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Email       string        `yaml:"email"`
	MinInterval time.Duration `yaml:"min_interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LLMConfig defines the generation provider (OpenAI-compatible).
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// SynonymRule maps an informal query term to its canonical form.
type SynonymRule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// CacheConfig controls the query cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Threshold float64       `yaml:"threshold"`
	Synonyms  []SynonymRule `yaml:"synonyms"`
}

// SweepConfig controls background maintenance.
type SweepConfig struct {
	Interval           time.Duration `yaml:"interval"`
	AgeThresholdDays   int           `yaml:"age_threshold_days"`
	UsageFloor         int           `yaml:"usage_floor"`
	PromotionThreshold int           `yaml:"promotion_threshold"`
}

// Options returns the sweep settings as models.SweepOptions.
func (s SweepConfig) Options() models.SweepOptions {
	return models.SweepOptions{
		AgeThresholdDays:   s.AgeThresholdDays,
		UsageFloor:         s.UsageFloor,
		PromotionThreshold: s.PromotionThreshold,
	}
}

// BudgetConfig controls token budget enforcement for external APIs.
type BudgetConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	Policies []models.BudgetPolicy `yaml:"policies"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	sweep := models.DefaultSweepOptions()
	return &Config{
		Listen: ":8080",
		DBPath: "fitfact.db",
		PubMed: PubMedConfig{
			MinInterval: 340 * time.Millisecond,
			Timeout:     10 * time.Second,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			MinInterval: time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Threshold: 0.7,
		},
		Sweep: SweepConfig{
			Interval:           24 * time.Hour,
			AgeThresholdDays:   sweep.AgeThresholdDays,
			UsageFloor:         sweep.UsageFloor,
			PromotionThreshold: sweep.PromotionThreshold,
		},
		Budget: BudgetConfig{
			Enabled: false,
		},
	}
}

// Load reads a YAML config file and expands environment variables. Missing
// credentials for enabled components are a startup error, the only class of
// failure that is allowed to be fatal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for configuration that would fail at first use.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: db_path is required")
	}
	if c.Cache.Threshold < 0 || c.Cache.Threshold > 1 {
		return fmt.Errorf("config: cache.threshold must be in [0, 1], got %v", c.Cache.Threshold)
	}
	return nil
}
