package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/quotla/quotla-api/internal/observability/metrics"
)

// RateProvider returns the rates from base to every currency it knows.
// Implementations make at most one outbound call per FetchRates.
type RateProvider interface {
	FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

// ProviderFunc adapts a function to RateProvider.
type ProviderFunc func(ctx context.Context, base string) (map[string]decimal.Decimal, error)

func (f ProviderFunc) FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	return f(ctx, base)
}

type latestResponse struct {
	Result          string                     `json:"result"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
	LastUpdateUTC   string                     `json:"time_last_update_utc"`
	ErrorType       string                     `json:"error-type"`
}

// HTTPProvider talks to an open.er-api.com compatible endpoint
// (GET {baseURL}/v6/latest/{BASE}).
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewHTTPProvider(cfg Config, client *http.Client, logger *slog.Logger) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	failures := uint32(max(cfg.BreakerFailures, 1))
	settings := gobreaker.Settings{
		Name:        "fx-provider",
		MaxRequests: uint32(max(cfg.BreakerProbes, 1)),
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.ProviderURL, "/"),
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (p *HTTPProvider) FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	start := time.Now()
	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetch(ctx, base)
	})
	metrics.RecordRateFetch(err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	return res.(map[string]decimal.Decimal), nil
}

func (p *HTTPProvider) fetch(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	url := fmt.Sprintf("%s/v6/latest/%s", p.baseURL, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates for %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch rates for %s: provider returned %d", base, resp.StatusCode)
	}
	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rates for %s: %w", base, err)
	}
	if body.Result != "success" {
		return nil, fmt.Errorf("fetch rates for %s: provider result %q %s", base, body.Result, body.ErrorType)
	}
	if len(body.ConversionRates) == 0 {
		return nil, fmt.Errorf("fetch rates for %s: empty rate table", base)
	}
	return body.ConversionRates, nil
}
