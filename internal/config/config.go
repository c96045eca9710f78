package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level rollbook.yaml configuration.
type Config struct {
	Book    BookConfig    `yaml:"book"`
	Equity  EquityConfig  `yaml:"equity"`
	Opening OpeningConfig `yaml:"opening"`
	Git     GitConfig     `yaml:"git"`
}

// BookConfig holds book-wide settings.
type BookConfig struct {
	Currency string `yaml:"currency"`
}

// EquityConfig names the accounts that receive the offsetting side of each
// opening entry.
type EquityConfig struct {
	Parent  string `yaml:"parent"`  // placeholder parent, e.g. "Equity"
	Opening string `yaml:"opening"` // offset account, e.g. "Opening Balances"
}

// OpeningConfig controls the generated opening transactions.
type OpeningConfig struct {
	Description string `yaml:"description"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a rollbook.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault reads a rollbook.yaml file, falling back to Default when
// the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Book: BookConfig{
			Currency: "EUR",
		},
		Equity: EquityConfig{
			Parent:  "Equity",
			Opening: "Opening Balances",
		},
		Opening: OpeningConfig{
			Description: "Opening balance",
		},
		Git: GitConfig{
			AutoCommit:  false,
			AuthorName:  "Rollbook",
			AuthorEmail: "rollbook@localhost",
		},
	}
}
