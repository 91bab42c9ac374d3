package fx

import (
	"os"
	"strconv"
	"time"
)

// Config holds environment-driven settings for the rate provider and cache.
type Config struct {
	ProviderURL     string        `yaml:"provider_url"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
	BreakerProbes   int           `yaml:"breaker_probes"`
}

func LoadConfig() Config {
	return Config{
		ProviderURL:     getenv("FX_PROVIDER_URL", "https://open.er-api.com"),
		CacheTTL:        getDuration("FX_CACHE_TTL", time.Hour),
		HTTPTimeout:     getDuration("FX_HTTP_TIMEOUT", 10*time.Second),
		BreakerFailures: getInt("FX_BREAKER_FAILURES", 5),
		BreakerTimeout:  getDuration("FX_BREAKER_TIMEOUT", 30*time.Second),
		BreakerProbes:   getInt("FX_BREAKER_PROBES", 1),
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

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
