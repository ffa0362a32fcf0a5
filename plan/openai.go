package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOpenAIModel   = "gpt-5-mini"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAI generates plans through the OpenAI Responses API.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &OpenAI{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model           string          `json:"model"`
	Input           []openAIMessage `json:"input"`
	MaxOutputTokens int             `json:"max_output_tokens,omitempty"`
}

type openAIResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// text joins every output_text part, the same value the SDKs expose as
// output_text.
func (r *openAIResponse) text() string {
	var b strings.Builder

	for _, out := range r.Output {
		if out.Type != "message" {
			continue
		}
		for _, c := range out.Content {
			if c.Type == "output_text" {
				b.WriteString(c.Text)
			}
		}
	}

	return b.String()
}

func (o *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	if o.apiKey == "" {
		return "", &ConfigError{Provider: "OpenAI", EnvVar: "OPENAI_API_KEY"}
	}

	body, err := json.Marshal(openAIRequest{
		Model: o.model,
		Input: []openAIMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		MaxOutputTokens: p.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", ErrUpstreamRequest, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", &ConfigError{Provider: "OpenAI", EnvVar: "OPENAI_API_KEY"}
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstreamRequest, resp.StatusCode, bytes.TrimSpace(data))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %w", ErrUpstreamRequest, err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrUpstreamRequest, parsed.Error.Message)
	}

	return strings.TrimSpace(parsed.text()), nil
}
