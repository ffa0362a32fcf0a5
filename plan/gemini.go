package plan

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini generates plans with Google's Gemini API. The client is created on
// first use so a server can start before credentials are supplied.
type Gemini struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}

	return &Gemini{
		apiKey: apiKey,
		model:  model,
	}
}

func (g *Gemini) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	g.client = client

	return client, nil
}

// tokenLimit narrows n to the API's int32 field, clamping instead of
// wrapping.
func tokenLimit(n int) int32 {
	return int32(min(max(n, 0), math.MaxInt32))
}

func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	if g.apiKey == "" {
		return "", &ConfigError{Provider: "Gemini", EnvVar: "GEMINI_API_KEY"}
	}

	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		MaxOutputTokens:   tokenLimit(p.MaxOutputTokens),
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(p.User), cfg)
	if err != nil {
		return "", fmt.Errorf("%w: GenAI generate failed: %w", ErrUpstreamRequest, err)
	}

	return strings.TrimSpace(resp.Text()), nil
}
