package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultModel produces 1536-dimensional vectors, matching the Postgres
	// backend's vector(1536) column.
	DefaultModel = "text-embedding-3-small"

	// maxBatchSize is the OpenAI embeddings API input cap.
	maxBatchSize = 2048
)

// ensure OpenAIGenerator implements Generator
var _ Generator = (*OpenAIGenerator)(nil)

// OpenAIGenerator generates embeddings via the OpenAI embeddings API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a generator. baseURL may be empty for the public API;
// model falls back to DefaultModel.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAIGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("embedding generator requires an api key")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Embed returns one vector per input text, batching requests to stay under
// the API's input cap.
func (g *OpenAIGenerator) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var all [][]float32
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch starting at %d: %w", start, err)
		}
		all = append(all, batch...)
	}
	if len(all) != len(texts) {
		return nil, fmt.Errorf("embedding mismatch: %d texts, %d vectors", len(texts), len(all))
	}
	return all, nil
}

func (g *OpenAIGenerator) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := g.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(g.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Data))
	for _, entry := range resp.Data {
		if int(entry.Index) >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", entry.Index)
		}
		vec := make([]float32, len(entry.Embedding))
		for i, v := range entry.Embedding {
			vec[i] = float32(v)
		}
		out[entry.Index] = vec
	}
	return out, nil
}
