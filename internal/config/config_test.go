package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazylearner/chatrelay/internal/config"
)

const minimalYAML = `
discord:
  token: ${TEST_DISCORD_TOKEN}
completion:
  api_key: ${TEST_HF_TOKEN:-hf-default}
`

func TestLoadFromBytes_AppliesOriginalDefaults(t *testing.T) {
	t.Setenv("TEST_DISCORD_TOKEN", "discord-secret")

	cfg, err := config.LoadFromBytes([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "discord-secret", cfg.Discord.Token)
	assert.Equal(t, "hf-default", cfg.Completion.APIKey, "${VAR:-default} should fall back")
	assert.Equal(t, config.ProviderHuggingFace, cfg.Completion.Provider)
	assert.Equal(t, "meta-llama/Llama-3.1-8B-Instruct:novita", cfg.Completion.Model)
	assert.Equal(t, 300, cfg.Completion.MaxTokens)
	assert.InDelta(t, 0.6, cfg.Completion.TemperatureValue(), 1e-9)
	assert.Equal(t, 60*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, "https://router.huggingface.co/v1/chat/completions", cfg.Completion.GetEndpoint())

	assert.Equal(t, "!reset", cfg.Bot.ResetCommand)
	assert.Equal(t, "I've cleared our previous chats. Starting fresh! 💜", cfg.Bot.ResetReply)
	assert.Equal(t, 1900, cfg.Bot.MaxReplyChars)
	assert.Equal(t, "...", cfg.Bot.Ellipsis)
	assert.Equal(t, 16, cfg.Bot.HistoryLimit)
	assert.Contains(t, cfg.Bot.SystemPrompt, "Crazylearner")

	assert.Equal(t, config.DefaultDiscordGatewayURL, cfg.Discord.GatewayURL)
	assert.Equal(t, 37377, cfg.Discord.Intents)
}

func TestLoadFromBytes_ExplicitZeroTemperatureIsKept(t *testing.T) {
	t.Setenv("TEST_DISCORD_TOKEN", "x")

	cfg, err := config.LoadFromBytes([]byte(minimalYAML + "  temperature: 0\n"))
	require.NoError(t, err)

	assert.Zero(t, cfg.Completion.TemperatureValue())
}

func TestLoadFromBytes_EnvOverrides(t *testing.T) {
	t.Setenv("TEST_DISCORD_TOKEN", "x")
	t.Setenv("RELAY_MODEL", "other/model")
	t.Setenv("RELAY_TELEMETRY_LOG", "/tmp/turns.jsonl")

	cfg, err := config.LoadFromBytes([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "other/model", cfg.Completion.Model)
	assert.True(t, cfg.Monitoring.Telemetry.Enabled)
	assert.Equal(t, "/tmp/turns.jsonl", cfg.Monitoring.Telemetry.LogPath)
}

func TestLoadFromBytes_MissingDiscordTokenIsFatal(t *testing.T) {
	t.Setenv("TEST_DISCORD_TOKEN", "")

	_, err := config.LoadFromBytes([]byte(minimalYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord.token is required")
}

func TestParse_SkipsValidation(t *testing.T) {
	t.Setenv("TEST_DISCORD_TOKEN", "")

	cfg, err := config.Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Empty(t, cfg.Discord.Token)
}

func TestLoadFromBytes_InvalidYAML(t *testing.T) {
	_, err := config.LoadFromBytes([]byte("bot: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_DISCORD_TOKEN", "x")
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "x", cfg.Discord.Token)

	_, err = config.Load("")
	assert.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg, err := config.Parse([]byte(`
discord:
  token: tok
completion:
  api_key: key
`))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "unknown provider", mutate: func(c *config.Config) { c.Completion.Provider = "cohere" }, wantErr: "completion.provider"},
		{name: "missing api key", mutate: func(c *config.Config) { c.Completion.APIKey = "" }, wantErr: "completion.api_key is required"},
		{name: "bedrock needs no api key", mutate: func(c *config.Config) {
			c.Completion.Provider = config.ProviderBedrock
			c.Completion.APIKey = ""
		}},
		{name: "odd history limit", mutate: func(c *config.Config) { c.Bot.HistoryLimit = 15 }, wantErr: "bot.history_limit"},
		{name: "reply limit over platform max", mutate: func(c *config.Config) { c.Bot.MaxReplyChars = 1999 }, wantErr: "bot.max_reply_chars"},
		{name: "temperature out of range", mutate: func(c *config.Config) {
			v := 3.0
			c.Completion.Temperature = &v
		}, wantErr: "completion.temperature"},
		{name: "bad gateway scheme", mutate: func(c *config.Config) { c.Discord.GatewayURL = "https://gateway" }, wantErr: "discord.gateway_url"},
		{name: "ops without addr", mutate: func(c *config.Config) { c.Ops.Enabled = true }, wantErr: "ops.addr is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveProviderEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		region   string
		want     string
	}{
		{name: "huggingface", provider: "huggingface", want: "https://router.huggingface.co/v1/chat/completions"},
		{name: "openai", provider: "openai", want: "https://api.openai.com/v1/chat/completions"},
		{name: "anthropic", provider: "anthropic", want: "https://api.anthropic.com/v1/messages"},
		{
			name:     "bedrock with region",
			provider: "bedrock",
			model:    "anthropic.claude-3-haiku-20240307-v1:0",
			region:   "eu-west-1",
			want:     "https://bedrock-runtime.eu-west-1.amazonaws.com/model/anthropic.claude-3-haiku-20240307-v1:0/invoke",
		},
		{
			name:     "bedrock default region",
			provider: "bedrock",
			model:    "m",
			want:     "https://bedrock-runtime.us-east-1.amazonaws.com/model/m/invoke",
		},
		{name: "unknown defaults to huggingface", provider: "custom", want: "https://router.huggingface.co/v1/chat/completions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := config.ResolveProviderEndpoint(tt.provider, tt.model, tt.region)
			if got != tt.want {
				t.Errorf("ResolveProviderEndpoint(%q, %q, %q) = %q, want %q", tt.provider, tt.model, tt.region, got, tt.want)
			}
		})
	}
}

func TestCompletionConfig_GetEndpoint_ExplicitWins(t *testing.T) {
	c := config.CompletionConfig{Provider: "openai", Endpoint: "http://localhost:8080/v1/chat/completions"}
	assert.Equal(t, "http://localhost:8080/v1/chat/completions", c.GetEndpoint())
}
