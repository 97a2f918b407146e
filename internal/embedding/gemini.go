package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini embedding model used when none is
// configured.
const DefaultModel = "text-embedding-004"

// GeminiClient calls the Gemini embedding API. It is the production
// Client implementation.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed embedding client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Embed returns the embedding vector for text, constrained to the
// provider Dimension.
func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := Dimension
	resp, err := g.client.Models.EmbedContent(ctx, g.model,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim})
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini: empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}
