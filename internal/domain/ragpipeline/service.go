package ragpipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/retrieval"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// Pipeline runs the preprocess -> retrieve -> generate -> finish state
// machine for one question.
type Pipeline interface {
	Run(ctx context.Context, req Request) (retrieval.Answer, error)
}

type pipeline struct {
	cfg         Config
	embedder    retrieval.Embedder
	store       retrieval.VectorStore
	chat        retrieval.Chat
	translator  retrieval.Translator
	preferences PreferenceRepository
	trending    TrendingCache
	logger      *slog.Logger
}

// NewPipeline wires the retrieval/generation dependencies into a
// Pipeline.
func NewPipeline(cfg Config, embedder retrieval.Embedder, store retrieval.VectorStore, chat retrieval.Chat, translator retrieval.Translator, preferences PreferenceRepository, trending TrendingCache, logger *slog.Logger) Pipeline {
	if cfg.SimilarityK <= 0 {
		cfg.SimilarityK = 5
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 0.6
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	cfg.Temperature = clampTemperature(cfg.Temperature)
	return &pipeline{
		cfg:         cfg,
		embedder:    embedder,
		store:       store,
		chat:        chat,
		translator:  translator,
		preferences: preferences,
		trending:    trending,
		logger:      logger.With("component", "ragpipeline.service"),
	}
}

func (p *pipeline) Run(ctx context.Context, req Request) (retrieval.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return retrieval.Answer{}, apperrors.Wrap("invalid_input", "question cannot be empty", nil)
	}

	language := p.resolveLanguage(ctx, req.UserID)

	if reply, ok := p.preprocessGreeting(question); ok {
		return retrieval.Answer{
			Text: reply,
			Metrics: retrieval.Metrics{
				ModelName:        p.cfg.Model,
				ResponseLanguage: language,
				SourceLanguage:   language,
			},
		}, nil
	}

	retrieveStart := time.Now()
	contextText, docs, sourceLang, translatedQuery, wasTranslated := p.retrieve(ctx, question, req.WorkspaceID, language)
	retrievalLatency := latencySince(retrieveStart)

	p.recordTrending(ctx, req.WorkspaceID, question)

	generateStart := time.Now()
	answerText, promptTokens, completionTokens, genErr := p.generate(ctx, question, contextText, language)
	generationLatency := latencySince(generateStart)

	metrics := retrieval.Metrics{
		RetrievalLatency:   retrievalLatency,
		GenerationLatency:  generationLatency,
		RetrievedDocs:      docs,
		NumRetrieved:       len(docs),
		ModelName:          p.cfg.Model,
		PromptTokens:       promptTokens,
		CompletionTokens:   completionTokens,
		SourceLanguage:     sourceLang,
		ResponseLanguage:   language,
		WasTranslated:      wasTranslated,
		TranslatedQuestion: translatedQuery,
	}
	if genErr != nil {
		metrics.Error = genErr.Error()
		p.logger.Warn("generation failed, returning fallback answer", "error", genErr)
		answerText = defaultFallbackAnswer
	}

	return retrieval.Answer{Text: answerText, Metrics: metrics}, nil
}

// preprocessGreeting implements the greeting short-circuit: trivial
// greetings of at most three tokens skip retrieval entirely.
func (p *pipeline) preprocessGreeting(question string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(question))
	normalized = strings.Trim(normalized, "!.? ")
	if len(strings.Fields(normalized)) > 3 {
		return "", false
	}
	if _, ok := greetingTokens[normalized]; !ok {
		return "", false
	}
	return greetingReply, true
}

func (p *pipeline) resolveLanguage(ctx context.Context, userID int64) string {
	if p.preferences == nil {
		return p.cfg.DefaultLanguage
	}
	lang, found, err := p.preferences.GetLanguage(ctx, userID)
	if err != nil || !found || strings.TrimSpace(lang) == "" {
		return p.cfg.DefaultLanguage
	}
	return lang
}

// retrieve optionally translates the query to English, embeds it,
// searches the vector store, and keeps only hits above the score
// threshold for the prompt while still reporting every hit for
// telemetry.
func (p *pipeline) retrieve(ctx context.Context, question, workspaceID, language string) (string, []retrieval.RetrievedDoc, string, string, bool) {
	sourceLang := language
	query := question
	wasTranslated := false
	translated := ""

	if p.translator != nil && language != "en" {
		if detected, err := p.translator.Detect(ctx, question); err == nil {
			sourceLang = detected
		}
		if sourceLang != "en" {
			if t, err := p.translator.Translate(ctx, question, sourceLang, "en"); err == nil {
				query = t
				translated = t
				wasTranslated = true
			} else {
				p.logger.Warn("translation failed, falling back to original text", "error", err)
			}
		}
	}

	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		p.logger.Warn("embedding query failed", "error", err)
		return "", nil, sourceLang, translated, wasTranslated
	}

	hits, err := p.store.SearchWithScore(ctx, vectors[0], p.cfg.SimilarityK, retrieval.Filter{WorkspaceID: workspaceID})
	if err != nil {
		p.logger.Warn("vector search failed", "error", err)
		return "", nil, sourceLang, translated, wasTranslated
	}

	var docs []retrieval.RetrievedDoc
	var kept []string
	for _, hit := range hits {
		docs = append(docs, retrieval.RetrievedDoc{
			SourceReference: hit.Chunk.SourceReference,
			WorkspaceID:     hit.Chunk.WorkspaceID,
			Score:           hit.Score,
			Snippet:         snippet(hit.Chunk.Text, 200),
		})
		if hit.Score > p.cfg.ScoreThreshold {
			kept = append(kept, hit.Chunk.Text)
		}
	}
	return strings.Join(kept, "\n\n"), docs, sourceLang, translated, wasTranslated
}

func (p *pipeline) generate(ctx context.Context, question, contextText, language string) (string, int, int, error) {
	system := fmt.Sprintf(
		"You are a technical support assistant. Answer only using the information in the provided context. "+
			"If the context is insufficient, say so plainly instead of guessing. Respond in %s.",
		language,
	)
	contextBlock := contextText
	if contextBlock == "" {
		contextBlock = "(no relevant context found)"
	}
	result, err := p.chat.Generate(ctx, retrieval.GenerationRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		Messages: []retrieval.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question)},
		},
	})
	if err != nil {
		return "", 0, 0, err
	}
	return result.Text, result.PromptTokens, result.CompletionTokens, nil
}

func (p *pipeline) recordTrending(ctx context.Context, workspaceID, question string) {
	if p.trending == nil {
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(question))
	p.trending.RecordHit(ctx, workspaceID, normalized)
}

func snippet(text string, maxLen int) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= maxLen {
		return trimmed
	}
	return trimmed[:maxLen] + "..."
}
