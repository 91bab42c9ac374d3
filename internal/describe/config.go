package describe

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderNone      = "none"
)

// Config selects the primary provider and carries credentials for every
// provider the chain may fall back to.
type Config struct {
	Provider        string        `yaml:"provider"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key"`
	AnthropicModel  string        `yaml:"anthropic_model"`
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	OpenAIModel     string        `yaml:"openai_model"`
	GeminiAPIKey    string        `yaml:"gemini_api_key"`
	GeminiModel     string        `yaml:"gemini_model"`
	GeminiBaseURL   string        `yaml:"gemini_base_url"`
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     float64       `yaml:"temperature"`
	Timeout         time.Duration `yaml:"timeout"`
}

func LoadConfig() Config {
	return Config{
		Provider:        strings.ToLower(getenv("AI_PROVIDER", ProviderAnthropic)),
		AnthropicAPIKey: getenv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getenv("ANTHROPIC_MODEL", defaultAnthropicModel),
		OpenAIAPIKey:    getenv("OPENAI_API_KEY", ""),
		OpenAIModel:     getenv("OPENAI_MODEL", defaultOpenAIModel),
		GeminiAPIKey:    getenv("GOOGLE_AI_API_KEY", ""),
		GeminiModel:     getenv("GEMINI_MODEL", defaultGeminiModel),
		GeminiBaseURL:   getenv("GEMINI_BASE_URL", defaultGeminiBaseURL),
		MaxTokens:       getInt("AI_MAX_TOKENS", 500),
		Temperature:     getFloat("AI_TEMPERATURE", 0.7),
		Timeout:         getDuration("AI_TIMEOUT", 30*time.Second),
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
