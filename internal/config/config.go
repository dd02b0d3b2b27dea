// Package config loads and validates the relay configuration.
//
// DESIGN: Configuration comes from a YAML file (embedded default or user
// supplied). Secrets are referenced as ${VAR} and expanded from the
// environment before parsing, so the file itself never carries tokens.
//
// FILES:
//   - config.go:     Root Config struct, Load(), Validate()
//   - bot.go:        Persona, reset command and reply shaping
//   - providers.go:  Completion provider settings and endpoint resolution
//   - monitoring.go: Logging, telemetry and ops server settings
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the relay.
type Config struct {
	Bot        BotConfig        `yaml:"bot"`        // Persona and reply shaping
	Completion CompletionConfig `yaml:"completion"` // Upstream completion endpoint
	Discord    DiscordConfig    `yaml:"discord"`    // Chat platform connection
	Ops        OpsConfig        `yaml:"ops"`        // Health and metrics server
	Monitoring MonitoringConfig `yaml:"monitoring"` // Logging and telemetry
}

// DiscordConfig contains chat platform settings.
type DiscordConfig struct {
	Token      string `yaml:"token"`       // Bot token (from DISCORD_TOKEN)
	GatewayURL string `yaml:"gateway_url"` // Gateway websocket URL
	APIBase    string `yaml:"api_base"`    // REST API base URL
	Intents    int    `yaml:"intents"`     // Gateway intents bitmask
}

const (
	DefaultDiscordGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	DefaultDiscordAPIBase    = "https://discord.com/api/v10"

	// GUILDS | GUILD_MESSAGES | DIRECT_MESSAGES | MESSAGE_CONTENT
	DefaultDiscordIntents = 1<<0 | 1<<9 | 1<<12 | 1<<15
)

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults expands environment variables with support for default values.
// Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse expands, decodes and defaults the YAML without validating it.
// Used by commands that do not need every section (e.g. console mode
// has no Discord token).
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvOverrides() {
	if model := os.Getenv("RELAY_MODEL"); model != "" {
		c.Completion.Model = model
	}

	if envPath := os.Getenv("RELAY_TELEMETRY_LOG"); envPath != "" {
		c.Monitoring.Telemetry.LogPath = envPath
		c.Monitoring.Telemetry.Enabled = true
	}
}

// applyDefaults fills values the relay has always hard-coded.
func (c *Config) applyDefaults() {
	c.Bot.applyDefaults()
	c.Completion.applyDefaults()

	if c.Discord.GatewayURL == "" {
		c.Discord.GatewayURL = DefaultDiscordGatewayURL
	}
	if c.Discord.APIBase == "" {
		c.Discord.APIBase = DefaultDiscordAPIBase
	}
	if c.Discord.Intents == 0 {
		c.Discord.Intents = DefaultDiscordIntents
	}
	c.Discord.APIBase = strings.TrimRight(c.Discord.APIBase, "/")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Bot.Validate(); err != nil {
		return err
	}
	if err := c.Completion.Validate(); err != nil {
		return err
	}
	if err := c.Discord.Validate(); err != nil {
		return err
	}
	if c.Ops.Enabled && c.Ops.Addr == "" {
		return fmt.Errorf("ops.addr is required when ops is enabled")
	}
	return nil
}

// Validate checks the chat platform settings.
func (d DiscordConfig) Validate() error {
	if strings.TrimSpace(d.Token) == "" {
		return fmt.Errorf("discord.token is required (set DISCORD_TOKEN)")
	}
	if !strings.HasPrefix(d.GatewayURL, "ws://") && !strings.HasPrefix(d.GatewayURL, "wss://") {
		return fmt.Errorf("invalid discord.gateway_url: %q (must be ws:// or wss://)", d.GatewayURL)
	}
	return nil
}
