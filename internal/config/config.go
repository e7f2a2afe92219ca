// Package config centralizes runtime configuration for xyn. It loads a
// JSON (or YAML) configuration file and exposes a process-wide configuration
// with sensible defaults. Tests and development builds use defaults when the
// file is not present. Production operators should place a file at
// /etc/xyn/config.json or pass a different path with --config / XYN_CONFIG.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configurable options for the xyn service.
type Config struct {
	DataDir   string `json:"data_dir" yaml:"data_dir"`
	StateFile string `json:"state_file" yaml:"state_file"`
	BlocksDir string `json:"blocks_dir" yaml:"blocks_dir"`
	IndexFile string `json:"index_file" yaml:"index_file"`
	DocsDir   string `json:"docs_dir" yaml:"docs_dir"`
	Port      int    `json:"port" yaml:"port"`

	// Ledger economics. All four must be strictly positive.
	MaxSupply       uint64 `json:"max_supply" yaml:"max_supply"`
	InitialReward   uint64 `json:"initial_reward" yaml:"initial_reward"`
	BlockIntervalMs int64  `json:"block_interval_ms" yaml:"block_interval_ms"`
	HalvingInterval uint64 `json:"halving_interval" yaml:"halving_interval"`

	// Authority bridge.
	AuthorityNetwork string `json:"authority_network" yaml:"authority_network"`
	AuthoritySocket  string `json:"authority_socket" yaml:"authority_socket"`
	RequestTimeoutMs int64  `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	HealthTimeoutMs  int64  `json:"health_timeout_ms" yaml:"health_timeout_ms"`
	SignaturePrefix  string `json:"signature_prefix" yaml:"signature_prefix"`

	// Request layer.
	MaxMessageLen      int `json:"max_message_len" yaml:"max_message_len"`
	MinWalletLen       int `json:"min_wallet_len" yaml:"min_wallet_len"`
	RateLimitPerMinute int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	RateLimitBurst     int `json:"rate_limit_burst" yaml:"rate_limit_burst"`

	// Logging.
	LogFile       string `json:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int    `json:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxAgeDays int    `json:"log_max_age_days" yaml:"log_max_age_days"`
}

var cfg *Config

// Defaults returns the built-in configuration: 12,614,400 tokens, 36 per
// block, one block every 180s and a halving every 175,200 blocks.
func Defaults() *Config {
	return &Config{
		DataDir:            "data",
		StateFile:          "ledger_state.json",
		BlocksDir:          "history",
		IndexFile:          "index.db",
		DocsDir:            "internal/docs",
		Port:               3000,
		MaxSupply:          12_614_400,
		InitialReward:      36,
		BlockIntervalMs:    180_000,
		HalvingInterval:    175_200,
		AuthorityNetwork:   "unix",
		AuthoritySocket:    "/tmp/xyron-go.sock",
		RequestTimeoutMs:   5_000,
		HealthTimeoutMs:    1_000,
		SignaturePrefix:    "X11_",
		MaxMessageLen:      160,
		MinWalletLen:       10,
		RateLimitPerMinute: 30,
		RateLimitBurst:     10,
		LogFile:            "logs/node.log",
		LogMaxSizeMB:       50,
		LogMaxAgeDays:      14,
	}
}

// LoadConfig reads a JSON or YAML file at path. If the file does not exist
// LoadConfig returns defaults (and no error) so that the application can run
// in development with minimal friction. A file that exists but cannot be
// parsed is an error: the ledger economics must never silently fall back.
func LoadConfig(path string) (*Config, error) {
	def := Defaults()

	if path == "" {
		cfg = def
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = def
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(b, &c)
	default:
		err = json.Unmarshal(b, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	c.mergeDefaults(def)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg = &c
	return cfg, nil
}

// merge defaults for any zero-value fields
func (c *Config) mergeDefaults(def *Config) {
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.StateFile == "" {
		c.StateFile = def.StateFile
	}
	if c.BlocksDir == "" {
		c.BlocksDir = def.BlocksDir
	}
	if c.IndexFile == "" {
		c.IndexFile = def.IndexFile
	}
	if c.DocsDir == "" {
		c.DocsDir = def.DocsDir
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.MaxSupply == 0 {
		c.MaxSupply = def.MaxSupply
	}
	if c.InitialReward == 0 {
		c.InitialReward = def.InitialReward
	}
	if c.BlockIntervalMs == 0 {
		c.BlockIntervalMs = def.BlockIntervalMs
	}
	if c.HalvingInterval == 0 {
		c.HalvingInterval = def.HalvingInterval
	}
	if c.AuthorityNetwork == "" {
		c.AuthorityNetwork = def.AuthorityNetwork
	}
	if c.AuthoritySocket == "" {
		c.AuthoritySocket = def.AuthoritySocket
	}
	if c.RequestTimeoutMs == 0 {
		c.RequestTimeoutMs = def.RequestTimeoutMs
	}
	if c.HealthTimeoutMs == 0 {
		c.HealthTimeoutMs = def.HealthTimeoutMs
	}
	if c.SignaturePrefix == "" {
		c.SignaturePrefix = def.SignaturePrefix
	}
	if c.MaxMessageLen == 0 {
		c.MaxMessageLen = def.MaxMessageLen
	}
	if c.MinWalletLen == 0 {
		c.MinWalletLen = def.MinWalletLen
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = def.RateLimitPerMinute
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = def.RateLimitBurst
	}
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = def.LogMaxSizeMB
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = def.LogMaxAgeDays
	}
}

// Validate enforces the ledger invariants: every economic parameter is
// strictly positive.
func (c *Config) Validate() error {
	if c.MaxSupply == 0 {
		return errors.New("config: max_supply must be positive")
	}
	if c.InitialReward == 0 {
		return errors.New("config: initial_reward must be positive")
	}
	if c.BlockIntervalMs <= 0 {
		return errors.New("config: block_interval_ms must be positive")
	}
	if c.HalvingInterval == 0 {
		return errors.New("config: halving_interval must be positive")
	}
	if c.RequestTimeoutMs <= 0 || c.HealthTimeoutMs <= 0 {
		return errors.New("config: bridge timeouts must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	switch c.AuthorityNetwork {
	case "unix", "tcp":
	default:
		return fmt.Errorf("config: unsupported authority_network %q", c.AuthorityNetwork)
	}
	return nil
}

// BlockInterval returns the mint cadence.
func (c *Config) BlockInterval() time.Duration {
	return time.Duration(c.BlockIntervalMs) * time.Millisecond
}

// RequestTimeout returns the bound on a single authority round trip.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// HealthTimeout returns the bound on an authority reachability probe.
func (c *Config) HealthTimeout() time.Duration {
	return time.Duration(c.HealthTimeoutMs) * time.Millisecond
}

// StatePath is the absolute-or-relative path of the ledger state file.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, c.StateFile)
}

// BlocksPath is the directory holding one file per minted block.
func (c *Config) BlocksPath() string {
	return filepath.Join(c.DataDir, c.BlocksDir)
}

// IndexPath is the SQLite index location.
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, c.IndexFile)
}

// Get returns the loaded configuration. If LoadConfig hasn't been called
// yet, it returns defaults.
func Get() *Config {
	if cfg == nil {
		cfg = Defaults()
	}
	return cfg
}

// Set replaces the process-wide configuration. The CLI calls it after
// applying flag and environment overrides.
func Set(c *Config) {
	cfg = c
}
