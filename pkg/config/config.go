// picobot - Telegram command bot with pluggable, permission-gated commands
// License: MIT
//
// Copyright (c) 2026 PicoBot contributors

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefixes is the set of characters that may start a command. It is written
// as a plain string ("/!") in JSON and in the environment, one prefix per
// character; a JSON array of one-character strings is accepted too.
type Prefixes []rune

func (p Prefixes) String() string {
	return string(p)
}

func (p Prefixes) MarshalText() ([]byte, error) {
	return []byte(string(p)), nil
}

func (p *Prefixes) UnmarshalText(text []byte) error {
	*p = dedupe([]rune(string(text)))
	return nil
}

func (p Prefixes) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

func (p *Prefixes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = dedupe([]rune(s))
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("prefixes must be a string or a list of characters: %w", err)
	}
	out := make([]rune, 0, len(list))
	for _, item := range list {
		if utf8.RuneCountInString(item) != 1 {
			return fmt.Errorf("prefix %q must be a single character", item)
		}
		r, _ := utf8.DecodeRuneInString(item)
		out = append(out, r)
	}
	*p = dedupe(out)
	return nil
}

func dedupe(rs []rune) []rune {
	out := make([]rune, 0, len(rs))
	for _, r := range rs {
		if r == ' ' || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled" env:"PICOBOT_RATELIMIT_ENABLED"`
	CommandsPerMinute int  `json:"commands_per_minute" env:"PICOBOT_RATELIMIT_PER_MINUTE"`
	Burst             int  `json:"burst" env:"PICOBOT_RATELIMIT_BURST"`
}

type AuditConfig struct {
	Enabled bool   `json:"enabled" env:"PICOBOT_AUDIT_ENABLED"`
	Path    string `json:"path" env:"PICOBOT_AUDIT_PATH"`
	Key     string `json:"key" env:"PICOBOT_AUDIT_KEY"`
}

type LogConfig struct {
	Level string `json:"level" env:"PICOBOT_LOG_LEVEL"`
	File  string `json:"file" env:"PICOBOT_LOG_FILE"`
}

// Config is the bot configuration. Prefixes may change while the bot is
// serving; read them through GetPrefixes() on every message.
type Config struct {
	Token     string          `json:"token" env:"BOT_TOKEN"`
	Prefixes  Prefixes        `json:"prefixes" env:"PREFIXES"`
	DBPath    string          `json:"db_path" env:"DB_PATH"`
	OwnerID   int64           `json:"owner_id" env:"OWNER_ID"`
	Proxy     string          `json:"proxy" env:"PICOBOT_PROXY"`
	Workers   int             `json:"workers" env:"PICOBOT_WORKERS"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Audit     AuditConfig     `json:"audit"`
	Log       LogConfig       `json:"log"`
	mu        sync.RWMutex
}

// ErrMissingToken is returned by Validate when no bot token is configured.
var ErrMissingToken = errors.New("bot token is not set (BOT_TOKEN)")

func DefaultConfig() *Config {
	return &Config{
		Prefixes: Prefixes{'/'},
		DBPath:   "database.db",
		Workers:  16,
		RateLimit: RateLimitConfig{
			Enabled:           false,
			CommandsPerMinute: 20,
			Burst:             5,
		},
		Audit: AuditConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none are
// given) into the process environment. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// LoadConfig builds the configuration from defaults, then the JSON file at
// path when it exists, then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if len(cfg.Prefixes) == 0 {
		cfg.Prefixes = Prefixes{'/'}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the settings needed to serve.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// GetToken returns the bot token.
func (c *Config) GetToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Token
}

// GetPrefixes returns a copy of the current command prefixes.
func (c *Config) GetPrefixes() []rune {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.Prefixes)
}

// SetPrefixes replaces the command prefixes. The change applies to the next
// message handled.
func (c *Config) SetPrefixes(prefixes []rune) error {
	clean := dedupe(prefixes)
	if len(clean) == 0 {
		return errors.New("at least one prefix is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Prefixes = clean
	return nil
}
