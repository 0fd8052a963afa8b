// Package embedder provides retrieval.Embedder implementations.
package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/yanqian/ai-helloworld/internal/infra/chatllm"
)

// ChatGPTEmbedder calls an OpenAI-compatible embeddings endpoint,
// batching requests by an estimated token budget.
type ChatGPTEmbedder struct {
	client *chatllm.Client
	model  string
	logger *slog.Logger

	dimOnce sync.Once
	dim     int
	dimErr  error
}

// NewChatGPTEmbedder constructs an embedder backed by client.
func NewChatGPTEmbedder(client *chatllm.Client, model string, logger *slog.Logger) *ChatGPTEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatGPTEmbedder{
		client: client,
		model:  strings.TrimSpace(model),
		logger: logger.With("component", "embedder.chatgpt"),
	}
}

// Dimension probes the embedding dimension once by embedding a short
// fixed string, then caches the result.
func (e *ChatGPTEmbedder) Dimension(ctx context.Context) (int, error) {
	e.dimOnce.Do(func() {
		vectors, err := e.Embed(ctx, []string{"dimension probe"})
		if err != nil {
			e.dimErr = err
			return
		}
		if len(vectors) == 0 {
			e.dimErr = fmt.Errorf("embedder: probe returned no vectors")
			return
		}
		e.dim = len(vectors[0])
	})
	return e.dim, e.dimErr
}

// Embed requests embeddings for the given texts.
func (e *ChatGPTEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out            [][]float32
		batch          []string
		batchTokens    int
		maxBatchTokens = 200_000
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbedding(ctx, chatllm.EmbeddingRequest{Model: e.model, Input: batch})
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}
		for _, item := range resp.Data {
			vec := make([]float32, len(item.Embedding))
			copy(vec, item.Embedding)
			out = append(out, vec)
		}
		if len(resp.Data) != len(batch) {
			e.logger.Warn("embedding result count mismatch", "expected", len(batch), "got", len(resp.Data))
		}
		batch = batch[:0]
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		tokens := estimateTokens(text)
		if tokens > maxBatchTokens {
			return nil, fmt.Errorf("text too large for embedding request: estimated tokens=%d", tokens)
		}
		if batchTokens+tokens > maxBatchTokens && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}
