package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all lucid configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Location  LocationConfig  `yaml:"location"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type EmbeddingConfig struct {
	OllamaURL     string `yaml:"ollama_url"`
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	RegenInterval int    `yaml:"regen_interval"` // seconds between regeneration batches
	RegenBatch    int    `yaml:"regen_batch"`
}

type RetrievalConfig struct {
	MaxResults      int     `yaml:"max_results"`
	MinProbability  float64 `yaml:"min_probability"`
	Decay           float64 `yaml:"decay"`
	Noise           float64 `yaml:"noise"`
	Threshold       float64 `yaml:"threshold"`
	ProbeWeight     float64 `yaml:"probe_weight"`
	BaseLevelWeight float64 `yaml:"base_level_weight"`
	SpreadingWeight float64 `yaml:"spreading_weight"`
	ContextBudget   int     `yaml:"context_budget"` // tokens
}

type LocationConfig struct {
	DecayInterval   int     `yaml:"decay_interval"` // seconds between decay sweeps
	DecayFactor     float64 `yaml:"decay_factor"`
	StickyThreshold float64 `yaml:"sticky_threshold"`
	Floor           float64 `yaml:"floor"`
	WellKnownFloor  float64 `yaml:"well_known_floor"`
	StaleDays       int     `yaml:"stale_days"`
	OrphanStaleDays int     `yaml:"orphan_stale_days"`
	CoAccessMinutes int     `yaml:"co_access_minutes"`
}

// Default returns a Config with the standard tuning.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37711,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Embedding: EmbeddingConfig{
			OllamaURL:     "http://localhost:11434",
			Model:         "nomic-embed-text",
			Dimensions:    768,
			RegenInterval: 5,
			RegenBatch:    10,
		},
		Retrieval: RetrievalConfig{
			MaxResults:      10,
			MinProbability:  0.1,
			Decay:           0.5,
			Noise:           0.25,
			Threshold:       0.0,
			ProbeWeight:     0.4,
			BaseLevelWeight: 0.3,
			SpreadingWeight: 0.3,
			ContextBudget:   300,
		},
		Location: LocationConfig{
			DecayInterval:   3600,
			DecayFactor:     0.1,
			StickyThreshold: 0.8,
			Floor:           0.1,
			WellKnownFloor:  0.4,
			StaleDays:       30,
			OrphanStaleDays: 60,
			CoAccessMinutes: 30,
		},
	}
}

// DefaultPath returns the default config path: ~/.lucid/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".lucid", "config.yaml"), nil
}

// Load reads YAML config from path, layered over Default(). A missing file
// is not an error — defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
