// Package describe drafts line-item descriptions for quotes and invoices
// through a chain of LLM providers. The configured primary provider is tried
// first; on failure the remaining providers are tried in a fixed order.
package describe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/quotla/quotla-api/internal/money"
	"github.com/quotla/quotla-api/internal/observability/metrics"
)

var (
	ErrDisabled           = errors.New("ai generation is disabled")
	ErrAllProvidersFailed = errors.New("ai generation failed")
	ErrInvalidInput       = money.ErrInvalidInput
)

const systemPrompt = `You are a professional business writer helping to create clear, professional descriptions for quotes and invoices.

The user will describe a service or product, and you should generate a concise, professional description suitable for a business quote or invoice line item.

Keep it professional, clear, and focused on the value provided. Use 2-4 sentences maximum.

Generate only the description, without any preamble or additional commentary.`

func buildPrompt(prompt string) string {
	return systemPrompt + "\n\nUser request: " + prompt
}

// Generator produces a description for a free-form prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Chain tries its generators in order and returns the first success.
type Chain struct {
	generators []Generator
	logger     *slog.Logger
}

// NewChain orders generators so that the one named primary runs first. The
// others keep their relative order. A primary of "none" disables the chain.
func NewChain(primary string, logger *slog.Logger, generators ...Generator) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if primary == ProviderNone {
		return &Chain{logger: logger}
	}
	ordered := make([]Generator, 0, len(generators))
	for _, g := range generators {
		if g.Name() == primary {
			ordered = append(ordered, g)
		}
	}
	for _, g := range generators {
		if g.Name() != primary {
			ordered = append(ordered, g)
		}
	}
	return &Chain{generators: ordered, logger: logger}
}

// New builds the provider chain from config. Providers without an API key
// are left out.
func New(cfg Config, logger *slog.Logger) *Chain {
	var gens []Generator
	if cfg.AnthropicAPIKey != "" {
		gens = append(gens, NewAnthropic(cfg))
	}
	if cfg.OpenAIAPIKey != "" {
		gens = append(gens, NewOpenAI(cfg))
	}
	if cfg.GeminiAPIKey != "" {
		gens = append(gens, NewGemini(cfg))
	}
	return NewChain(cfg.Provider, logger, gens...)
}

// Providers lists generator names in the order they are tried.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.generators))
	for _, g := range c.generators {
		names = append(names, g.Name())
	}
	return names
}

// Generate returns a sanitized description from the first provider that
// succeeds. When every provider fails the error wraps ErrAllProvidersFailed
// and the first provider's error.
func (c *Chain) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	if len(c.generators) == 0 {
		return "", ErrDisabled
	}

	var primaryErr error
	for i, g := range c.generators {
		out, err := g.Generate(ctx, prompt)
		if err == nil {
			out = Sanitize(out)
			if out != "" {
				metrics.RecordAIGeneration(g.Name(), true)
				return out, nil
			}
			err = errors.New("empty description")
		}
		metrics.RecordAIGeneration(g.Name(), false)
		c.logger.Warn("ai provider failed",
			slog.String("provider", g.Name()),
			slog.Bool("primary", i == 0),
			slog.Any("error", err))
		if i == 0 {
			primaryErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: primary provider %s: %w", ErrAllProvidersFailed, c.generators[0].Name(), primaryErr)
}

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)
	iframeBlock = regexp.MustCompile(`(?is)<iframe\b.*?</iframe\s*>`)
	inlineEvent = regexp.MustCompile(`(?i)on\w+\s*=\s*("[^"]*"|'[^']*')`)
	jsScheme    = regexp.MustCompile(`(?i)javascript:`)
)

// Sanitize strips script and iframe blocks, inline event handlers and
// javascript: URLs from model output, then trims surrounding whitespace.
func Sanitize(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = iframeBlock.ReplaceAllString(s, "")
	s = inlineEvent.ReplaceAllString(s, "")
	s = jsScheme.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
