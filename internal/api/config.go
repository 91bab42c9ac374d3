package api

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr               string        `yaml:"addr"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int           `yaml:"rate_limit_burst"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	ReadHeaderTimeout  time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	TrustProxyHeaders  bool          `yaml:"trust_proxy_headers"`
}

func LoadConfig() Config {
	return Config{
		Addr:               getenv("HTTP_ADDR", ":8080"),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 20),
		MaxBodyBytes:       int64(getInt("MAX_BODY_BYTES", 1<<20)),
		ReadHeaderTimeout:  getDuration("READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		TrustProxyHeaders:  getBool("TRUST_PROXY_HEADERS", false),
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

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
