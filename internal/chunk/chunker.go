// Package chunk splits extracted page text into token-bounded chunks for
// embedding. Token counts come from a real BPE tokenizer rather than a
// word-count estimate, so chunks never overshoot the embedding model's limit.
package chunk

import (
	"errors"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultTokenLimit and DefaultOverlap match the sizes the retrieval
	// pipeline was tuned against.
	DefaultTokenLimit = 500
	DefaultOverlap    = 50

	// minChunkTokens filters out fragments too small to be useful context.
	minChunkTokens = 20
)

// Chunker produces overlapping token-bounded chunks of text.
type Chunker struct {
	enc     *tiktoken.Tiktoken
	limit   int
	overlap int
}

// New creates a chunker with the given token limit and overlap. The encoding
// is cl100k_base, shared by the text-embedding-3 model family.
func New(limit, overlap int) (*Chunker, error) {
	if limit <= 0 {
		return nil, errors.New("token limit must be positive")
	}
	if overlap < 0 || overlap >= limit {
		return nil, errors.New("overlap must be in [0, limit)")
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Chunker{enc: enc, limit: limit, overlap: overlap}, nil
}

func (c *Chunker) countTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Split breaks text into chunks of at most the configured token limit.
// Paragraphs are kept together when possible; a paragraph larger than the
// limit is split on token windows with the configured overlap. Chunks below
// the minimum token count are dropped.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	var current []string
	currentTokens := 0

	flush := func() {
		if currentTokens == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, "\n\n"))
		current = nil
		currentTokens = 0
	}

	for _, para := range splitParagraphs(text) {
		n := c.countTokens(para)
		if n == 0 {
			continue
		}
		if n > c.limit {
			flush()
			chunks = append(chunks, c.splitLarge(para)...)
			continue
		}
		if currentTokens+n > c.limit {
			flush()
		}
		current = append(current, para)
		currentTokens += n
	}
	flush()

	kept := chunks[:0]
	for _, ch := range chunks {
		if c.countTokens(ch) >= minChunkTokens {
			kept = append(kept, ch)
		}
	}
	return kept
}

// splitLarge windows an oversized paragraph by token position.
func (c *Chunker) splitLarge(text string) []string {
	tokens := c.enc.Encode(text, nil, nil)
	step := c.limit - c.overlap
	var out []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.limit
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, strings.TrimSpace(c.enc.Decode(tokens[start:end])))
		if end == len(tokens) {
			break
		}
	}
	return out
}

func splitParagraphs(text string) []string {
	var paras []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paras = append(paras, block)
		}
	}
	return paras
}
