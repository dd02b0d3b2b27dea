package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported completion providers.
const (
	ProviderHuggingFace = "huggingface" // OpenAI-compatible HF router
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderBedrock     = "bedrock" // Anthropic format, SigV4 signed
)

const (
	DefaultProvider    = ProviderHuggingFace
	DefaultModel       = "meta-llama/Llama-3.1-8B-Instruct:novita"
	DefaultMaxTokens   = 300
	DefaultTemperature = 0.6
	DefaultTimeout     = 60 * time.Second
	DefaultAWSRegion   = "us-east-1"
)

// CompletionConfig describes the upstream completion endpoint.
type CompletionConfig struct {
	Provider    string        `yaml:"provider"`    // huggingface, openai, anthropic, bedrock
	Endpoint    string        `yaml:"endpoint"`    // Optional; resolved from provider when empty
	APIKey      string        `yaml:"api_key"`     // Inference key (from HF_TOKEN); unused for bedrock
	Model       string        `yaml:"model"`       // Fixed model identifier
	MaxTokens   int           `yaml:"max_tokens"`  // Completion token cap
	Temperature *float64      `yaml:"temperature"` // Sampling temperature
	Timeout     time.Duration `yaml:"timeout"`     // Per-request timeout
	Region      string        `yaml:"region"`      // AWS region for bedrock
}

func (c *CompletionConfig) applyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	c.Provider = strings.ToLower(c.Provider)
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == nil {
		t := DefaultTemperature
		c.Temperature = &t
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Region == "" {
		c.Region = DefaultAWSRegion
	}
}

// TemperatureValue returns the configured temperature or the default.
func (c CompletionConfig) TemperatureValue() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// GetEndpoint returns the configured endpoint, or resolves one from the provider.
func (c CompletionConfig) GetEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return ResolveProviderEndpoint(c.Provider, c.Model, c.Region)
}

// ResolveProviderEndpoint returns the default endpoint for a provider.
// Unknown providers resolve to the Hugging Face router.
func ResolveProviderEndpoint(provider, model, region string) string {
	switch provider {
	case ProviderOpenAI:
		return "https://api.openai.com/v1/chat/completions"
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1/messages"
	case ProviderBedrock:
		if region == "" {
			region = DefaultAWSRegion
		}
		return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/model/%s/invoke", region, model)
	default:
		return "https://router.huggingface.co/v1/chat/completions"
	}
}

// Validate checks the completion settings.
func (c CompletionConfig) Validate() error {
	switch c.Provider {
	case ProviderHuggingFace, ProviderOpenAI, ProviderAnthropic, ProviderBedrock:
	default:
		return fmt.Errorf("invalid completion.provider: %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("completion.model is required")
	}
	if c.Provider != ProviderBedrock && strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("completion.api_key is required (set HF_TOKEN)")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("invalid completion.max_tokens: %d (must be positive)", c.MaxTokens)
	}
	if t := c.TemperatureValue(); t < 0 || t > 2 {
		return fmt.Errorf("invalid completion.temperature: %v (must be 0-2)", t)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid completion.timeout: %s", c.Timeout)
	}
	return nil
}
