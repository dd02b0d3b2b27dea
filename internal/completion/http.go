package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/crazylearner/chatrelay/internal/store"
)

const (
	// DefaultTimeout for completion API calls.
	DefaultTimeout = 60 * time.Second

	// maxResponseSize prevents OOM on unexpectedly large API responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits error body in error messages to avoid log bloat.
	maxErrorBodyLen = 500

	anthropicVersion        = "2023-06-01"
	bedrockAnthropicVersion = "bedrock-2023-05-31"
)

// Provider names understood by HTTPClient.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderBedrock     = "bedrock"
)

// Options configures an HTTPClient.
type Options struct {
	Provider string
	Endpoint string
	APIKey   string
	Timeout  time.Duration

	// HTTPClient overrides the default HTTP client (useful for testing).
	// For bedrock, pass a client whose transport is a BedrockSigningTransport.
	HTTPClient *http.Client
}

// HTTPClient is a Client speaking to a provider over HTTP.
type HTTPClient struct {
	provider string
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
}

// NewHTTPClient validates opts and creates a client.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	if opts.Provider == "" {
		opts.Provider = DetectProvider(opts.Endpoint)
	}
	if opts.APIKey == "" && opts.Provider != ProviderBedrock {
		return nil, fmt.Errorf("api key required for %s", opts.Provider)
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{} // timeout via context, not client
	}
	return &HTTPClient{
		provider: opts.Provider,
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		timeout:  opts.Timeout,
		client:   client,
	}, nil
}

// Provider returns the wire format this client speaks.
func (c *HTTPClient) Provider() string {
	return c.provider
}

// DetectProvider infers the provider from an endpoint URL.
func DetectProvider(endpoint string) string {
	switch {
	case strings.Contains(endpoint, "bedrock-runtime"):
		return ProviderBedrock
	case strings.Contains(endpoint, "anthropic"):
		return ProviderAnthropic
	case strings.Contains(endpoint, "huggingface"):
		return ProviderHuggingFace
	default:
		return ProviderOpenAI
	}
}

// Complete sends the request and returns the first choice's text.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Result, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("invalid completion request: no messages")
	}

	body, err := buildRequestBody(c.provider, req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", c.provider, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", c.provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	setAuthHeaders(httpReq, c.provider, c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: c.provider, StatusCode: resp.StatusCode, Body: truncateBody(respBody)}
	}

	return parseResponse(c.provider, respBody)
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > maxErrorBodyLen {
		s = s[:maxErrorBodyLen] + "... (truncated)"
	}
	return s
}

func setAuthHeaders(req *http.Request, provider, apiKey string) {
	switch provider {
	case ProviderAnthropic:
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)
	case ProviderBedrock:
		// Signed by the transport.
	default:
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []store.Message `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type anthropicRequest struct {
	AnthropicVersion string          `json:"anthropic_version,omitempty"`
	Model            string          `json:"model,omitempty"`
	System           string          `json:"system,omitempty"`
	Messages         []store.Message `json:"messages"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
}

func buildRequestBody(provider string, req Request) ([]byte, error) {
	switch provider {
	case ProviderAnthropic, ProviderBedrock:
		// The Messages API takes the system prompt out of band.
		var system []string
		messages := make([]store.Message, 0, len(req.Messages))
		for _, m := range req.Messages {
			if m.Role == store.RoleSystem {
				system = append(system, m.Content)
				continue
			}
			messages = append(messages, m)
		}
		ar := &anthropicRequest{
			Model:       req.Model,
			System:      strings.Join(system, "\n\n"),
			Messages:    messages,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		}
		if provider == ProviderBedrock {
			// Model lives in the InvokeModel URL.
			ar.Model = ""
			ar.AnthropicVersion = bedrockAnthropicVersion
		}
		return json.Marshal(ar)
	default:
		return json.Marshal(&chatRequest{
			Model:       req.Model,
			Messages:    req.Messages,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
	}
}

func parseResponse(provider string, body []byte) (*Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to parse %s response: invalid JSON", provider)
	}
	doc := gjson.ParseBytes(body)

	if msg := doc.Get("error.message"); msg.Exists() {
		return nil, fmt.Errorf("%s API error: %s", provider, msg.String())
	}

	result := &Result{Provider: provider}

	switch provider {
	case ProviderAnthropic, ProviderBedrock:
		var parts []string
		doc.Get("content").ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == "text" {
				parts = append(parts, block.Get("text").String())
			}
			return true
		})
		result.Content = strings.Join(parts, "")
		result.InputTokens = int(doc.Get("usage.input_tokens").Int())
		result.OutputTokens = int(doc.Get("usage.output_tokens").Int())
	default:
		content := doc.Get("choices.0.message.content")
		if !content.Exists() {
			return nil, fmt.Errorf("failed to parse %s response: missing choices[0].message.content", provider)
		}
		result.Content = content.String()
		result.InputTokens = int(doc.Get("usage.prompt_tokens").Int())
		result.OutputTokens = int(doc.Get("usage.completion_tokens").Int())
	}

	if strings.TrimSpace(result.Content) == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrEmptyResponse)
	}
	return result, nil
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
