// Package llm talks to the text generation collaborator that rewrites article bodies.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"Grawler/internal/config"
	"Grawler/internal/domain"
	"Grawler/internal/ports"
)

const smallTitleLimit = 60

var (
	// ErrEmptyResponse is returned when the model answers with no usable content.
	ErrEmptyResponse = errors.New("empty response from generation model")
	// ErrMalformedResponse is returned when the answer is not the expected JSON object.
	ErrMalformedResponse = errors.New("malformed response from generation model")
)

const defaultSystemPrompt = `You are an experienced content editor. The provided article has a clickbait title and content designed to keep the reader engaged.
Write in the article's language unless a target language code is given.
Create a revised title that is clear, informative and free from clickbait.
Create a secondary title (smallTitle) that does not exceed 60 characters.
Rewrite the article content to be straightforward and readable without clickbait tactics.
Answer with a JSON object only: {"language": "<language code>", "title": "<revised title>", "smallTitle": "<max 60 characters>", "content": "<rewritten content>"}`

// Rewriter implements ports.Rewriter on an OpenAI-compatible chat model via langchaingo.
type Rewriter struct {
	model        llms.Model
	systemPrompt string
	limiter      *rate.Limiter
	logger       *slog.Logger
}

var _ ports.Rewriter = (*Rewriter)(nil)

// NewRewriter builds the client. The API key is required.
func NewRewriter(cfg config.OpenAIConfig, regen config.RegenerationConfig, logger *slog.Logger) (*Rewriter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is not configured")
	}

	opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	return newRewriter(model, cfg.SystemPrompt, regen, logger), nil
}

func newRewriter(model llms.Model, systemPrompt string, regen config.RegenerationConfig, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}
	if regen.LanguageCode != "" {
		systemPrompt += "\nPlease generate the content in " + regen.LanguageCode + "."
	}

	var limiter *rate.Limiter
	if regen.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(regen.RequestsPerMinute)), 1)
	}

	return &Rewriter{
		model:        model,
		systemPrompt: systemPrompt,
		limiter:      limiter,
		logger:       logger.With("component", "rewriter"),
	}
}

// Rewrite sends the article body and decodes the structured answer.
func (r *Rewriter) Rewrite(ctx context.Context, text string) (domain.Rewrite, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return domain.Rewrite{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, r.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}

	resp, err := r.model.GenerateContent(ctx, content, llms.WithJSONMode())
	if err != nil {
		return domain.Rewrite{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return domain.Rewrite{}, ErrEmptyResponse
	}

	out, err := decodeRewrite(resp.Choices[0].Content)
	if err != nil {
		r.logger.Warn("cannot decode rewrite", "error", err)
		return domain.Rewrite{}, err
	}
	return out, nil
}

func decodeRewrite(raw string) (domain.Rewrite, error) {
	raw = stripCodeFence(raw)
	if raw == "" {
		return domain.Rewrite{}, ErrEmptyResponse
	}

	var out domain.Rewrite
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return domain.Rewrite{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out.Language = strings.TrimSpace(out.Language)
	out.Title = strings.TrimSpace(out.Title)
	out.Content = strings.TrimSpace(out.Content)
	if out.Title == "" || out.Content == "" {
		return domain.Rewrite{}, fmt.Errorf("%w: title and content are required", ErrMalformedResponse)
	}

	out.SmallTitle = truncateRunes(strings.TrimSpace(out.SmallTitle), smallTitleLimit)
	return out, nil
}

func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
