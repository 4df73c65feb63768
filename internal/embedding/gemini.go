package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Embed uses the synchronous EmbedContent call; results follow input order.
// Gemini reports no token usage for embeddings.
func (p *GeminiProvider) Embed(ctx context.Context, req Request) (*Response, error) {
	contents := make([]*genai.Content, 0, len(req.Input))
	for _, text := range req.Input {
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: text}},
		})
	}

	cfg := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	if req.Dimensions > 0 {
		dim := int32(req.Dimensions)
		cfg.OutputDimensionality = &dim
	}

	res, err := p.client.Models.EmbedContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	data := make([]Vector, 0, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("gemini embedding: empty result at %d", i)
		}
		data = append(data, Vector{Index: i, Embedding: e.Values})
	}

	return &Response{Data: data}, nil
}
