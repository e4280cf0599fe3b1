// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for claimd.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	Store   StoreConfig   `yaml:"store"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Run     RunConfig     `yaml:"run"`
	Gateway GatewayConfig `yaml:"gateway"`
}

// StoreConfig selects and locates the session record backend.
type StoreConfig struct {
	// Backend is "sqlite" or "file".
	Backend string `yaml:"backend"`

	// Path is the database file or TOML document path.
	Path string `yaml:"path"`
}

// BridgeConfig points at the tdlib bridge sidecar and describes the claim
// interaction.
type BridgeConfig struct {
	BaseURL      string `yaml:"base_url"`
	TargetPeer   string `yaml:"target_peer"`
	ClaimCommand string `yaml:"claim_command"`
	ButtonLabel  string `yaml:"button_label"`
}

// RunConfig tunes the batch engine.
type RunConfig struct {
	// CooldownMinutes is the minimum gap since an account's last
	// successful claim before it is picked up again.
	CooldownMinutes int `yaml:"cooldown_minutes"`

	// AccountTimeout bounds one account's remote interaction.
	AccountTimeout time.Duration `yaml:"account_timeout"`

	// AccountDelay is the pacing sleep between accounts.
	AccountDelay time.Duration `yaml:"account_delay"`

	// Schedule is an optional cron expression for self-triggered runs.
	// Empty means runs are only triggered over HTTP and at startup.
	Schedule string `yaml:"schedule"`
}

// GatewayConfig configures the HTTP trigger surface.
type GatewayConfig struct {
	Bind            string        `yaml:"bind"`
	Secret          string        `yaml:"secret"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Defaults fills zero values with sensible defaults.
func (c *Config) Defaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.Store.Path == "" {
		c.Store.Path = "claimd.db"
	}
	if c.Bridge.ClaimCommand == "" {
		c.Bridge.ClaimCommand = "/claim"
	}
	if c.Bridge.ButtonLabel == "" {
		c.Bridge.ButtonLabel = "claim"
	}
	if c.Run.CooldownMinutes <= 0 {
		c.Run.CooldownMinutes = 1440
	}
	if c.Run.AccountTimeout <= 0 {
		c.Run.AccountTimeout = 30 * time.Second
	}
	if c.Run.AccountDelay <= 0 {
		c.Run.AccountDelay = 10 * time.Second
	}
	if c.Gateway.Bind == "" {
		c.Gateway.Bind = "127.0.0.1:8080"
	}
	if c.Gateway.ReadTimeout <= 0 {
		c.Gateway.ReadTimeout = 10 * time.Second
	}
	if c.Gateway.WriteTimeout <= 0 {
		c.Gateway.WriteTimeout = 30 * time.Second
	}
	if c.Gateway.ShutdownTimeout <= 0 {
		c.Gateway.ShutdownTimeout = 5 * time.Second
	}
}

// Cooldown returns the eligibility cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Run.CooldownMinutes) * time.Minute
}
