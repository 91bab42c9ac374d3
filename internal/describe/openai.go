package describe

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4Turbo

// OpenAI generates descriptions with the chat completions API. Any
// endpoint speaking that API can sit behind it; Gemini does.
type OpenAI struct {
	client *openai.Client
	cfg    Config
	name   string
	model  string
}

func NewOpenAI(cfg Config) *OpenAI {
	return &OpenAI{client: openai.NewClient(cfg.OpenAIAPIKey), cfg: cfg, name: ProviderOpenAI, model: cfg.OpenAIModel}
}

// NewOpenAIWithBaseURL points the client at a compatible endpoint.
func NewOpenAIWithBaseURL(cfg Config, baseURL string) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	clientCfg.BaseURL = baseURL
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), cfg: cfg, name: ProviderOpenAI, model: cfg.OpenAIModel}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}
	model := o.model
	if model == "" {
		model = defaultOpenAIModel
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: float32(o.cfg.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Create a professional description for this service: " + prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s api error: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s api returned empty response", o.name)
	}
	return resp.Choices[0].Message.Content, nil
}
