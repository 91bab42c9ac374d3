package describe

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// Anthropic generates descriptions with the Claude Messages API.
type Anthropic struct {
	client anthropic.Client
	cfg    Config
}

func NewAnthropic(cfg Config, opts ...option.RequestOption) *Anthropic {
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.AnthropicAPIKey)}, opts...)
	return &Anthropic{client: anthropic.NewClient(opts...), cfg: cfg}
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	model := a.cfg.AnthropicModel
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := a.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(prompt))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", errors.New("anthropic api returned empty content")
	}
	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", errors.New("anthropic api returned non-text content")
	}
	return block.Text, nil
}
