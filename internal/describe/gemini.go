package describe

import (
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// NewGemini talks to Gemini through its OpenAI-compatible endpoint.
func NewGemini(cfg Config) *OpenAI {
	baseURL := cfg.GeminiBaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := cfg.GeminiModel
	if model == "" {
		model = defaultGeminiModel
	}
	clientCfg := openai.DefaultConfig(cfg.GeminiAPIKey)
	clientCfg.BaseURL = baseURL
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), cfg: cfg, name: ProviderGemini, model: model}
}
