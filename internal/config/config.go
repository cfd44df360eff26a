// Package config handles psyche configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all psyche configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	LLM           LLMConfig           `yaml:"llm"`
	Memory        MemoryConfig        `yaml:"memory"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LLMConfig struct {
	Provider       string `yaml:"provider"` // "anthropic", "ollama"
	Model          string `yaml:"model"`
	OllamaURL      string `yaml:"ollama_url"`
	OllamaModel    string `yaml:"ollama_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	AnthropicKey   string `yaml:"anthropic_key"`
}

type MemoryConfig struct {
	BaseLifetime     time.Duration `yaml:"base_lifetime"`
	GrowthFactor     float64       `yaml:"growth_factor"`
	EvictionFloor    float64       `yaml:"eviction_floor"`
	PromotionCeiling float64       `yaml:"promotion_ceiling"`
	PromotionRepeats int           `yaml:"promotion_repeats"`
	MinPromotionAge  time.Duration `yaml:"min_promotion_age"`
	RecallLimit      int           `yaml:"recall_limit"`
}

type ConsolidationConfig struct {
	Interval       time.Duration `yaml:"interval"`
	InteractionMax int           `yaml:"interaction_max"`
}

type PipelineConfig struct {
	StageTimeout      time.Duration `yaml:"stage_timeout"`
	BackgroundTimeout time.Duration `yaml:"background_timeout"`
	BackgroundQueue   int           `yaml:"background_queue"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38800,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "",
		},
		Memory: MemoryConfig{
			BaseLifetime:     8 * time.Hour,
			GrowthFactor:     2.0,
			EvictionFloor:    0.05,
			PromotionCeiling: 0.8,
			PromotionRepeats: 3,
			MinPromotionAge:  time.Hour,
			RecallLimit:      5,
		},
		Consolidation: ConsolidationConfig{
			Interval:       24 * time.Hour,
			InteractionMax: 100,
		},
		Pipeline: PipelineConfig{
			StageTimeout:      30 * time.Second,
			BackgroundTimeout: 60 * time.Second,
			BackgroundQueue:   16,
		},
	}
}

// DefaultSearchPaths returns the config file search order: ./psyche.yaml,
// then ~/.config/psyche/psyche.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"psyche.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "psyche", "psyche.yaml"))
	}
	return paths
}

// Load reads configuration. An explicit path must exist; otherwise the
// search paths are tried and missing files fall back to defaults. The
// ANTHROPIC_API_KEY environment variable overrides the configured key and
// switches the provider.
func Load(explicit string) (Config, error) {
	cfg := Default()

	path := ""
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return cfg, fmt.Errorf("config file not found: %s", explicit)
		}
		path = explicit
	} else {
		for _, p := range DefaultSearchPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.Provider = "anthropic"
		cfg.LLM.AnthropicKey = key
	}

	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
