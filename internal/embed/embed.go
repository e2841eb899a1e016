// Package embed turns chunk text into embedding vectors. The crawler only
// depends on the Generator interface; the OpenAI implementation lives here so
// tests can substitute a fake.
package embed

import "context"

// Generator produces one embedding vector per input text, in order.
type Generator interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
