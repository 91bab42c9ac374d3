// Package fx converts monetary amounts between currencies using rates fetched
// from an external provider and cached per base currency.
//
// A fetch failure falls back to the last cached table for that base, however
// old, and only fails when nothing was ever cached.
package fx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/quotla/quotla-api/internal/money"
	"github.com/quotla/quotla-api/internal/observability/metrics"
)

var (
	// ErrRatesUnavailable means the provider failed and no table was cached.
	ErrRatesUnavailable = errors.New("exchange rates unavailable")
	// ErrRateNotFound means the table for the base has no usable rate for the target.
	ErrRateNotFound = errors.New("exchange rate not found")
	// ErrInvalidInput is money.ErrInvalidInput.
	ErrInvalidInput = money.ErrInvalidInput
)

var tracer = otel.Tracer("github.com/quotla/quotla-api/internal/fx")

// RatesResult is a rate table as served to callers.
type RatesResult struct {
	Base      money.Currency             `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetched_at"`
	Stale     bool                       `json:"stale"`
}

// Conversion is the outcome of Convert.
type Conversion struct {
	From            money.Currency  `json:"from"`
	To              money.Currency  `json:"to"`
	Amount          decimal.Decimal `json:"amount"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	Rate            decimal.Decimal `json:"rate"`
	Timestamp       time.Time       `json:"timestamp"`
	Stale           bool            `json:"stale"`
}

// Service converts amounts. It is safe for concurrent use.
type Service struct {
	provider RateProvider
	cache    *RateCache
	group    singleflight.Group
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for staleness tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(provider RateProvider, cache *RateCache, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewRateCache(time.Hour)
	}
	s := &Service{provider: provider, cache: cache, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRates returns the rate table for base, fetching it when the cache has no
// fresh entry.
func (s *Service) GetRates(ctx context.Context, base string) (RatesResult, error) {
	cur, err := money.ParseCurrency(base)
	if err != nil {
		return RatesResult{}, err
	}
	ctx, span := tracer.Start(ctx, "fx.GetRates")
	defer span.End()
	span.SetAttributes(attribute.String("fx.base", string(cur)))

	snap, stale, err := s.snapshot(ctx, cur)
	if err != nil {
		failSpan(span, err)
		return RatesResult{}, err
	}
	span.SetAttributes(attribute.Bool("fx.stale", stale))
	return RatesResult{
		Base:      cur,
		Rates:     maps.Clone(snap.Rates),
		FetchedAt: snap.FetchedAt,
		Stale:     stale,
	}, nil
}

// Convert returns amount expressed in to, rounded to two decimals. Converting
// a currency to itself returns amount unchanged at rate 1.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (Conversion, error) {
	if amount.IsNegative() {
		metrics.RecordConversion("invalid")
		return Conversion{}, fmt.Errorf("%w: amount %s must not be negative", ErrInvalidInput, amount)
	}
	src, err := money.ParseCurrency(from)
	if err != nil {
		metrics.RecordConversion("invalid")
		return Conversion{}, err
	}
	dst, err := money.ParseCurrency(to)
	if err != nil {
		metrics.RecordConversion("invalid")
		return Conversion{}, err
	}
	if src == dst {
		metrics.RecordConversion("identity")
		return Conversion{
			From:            src,
			To:              dst,
			Amount:          amount,
			ConvertedAmount: amount,
			Rate:            decimal.NewFromInt(1),
			Timestamp:       s.now().UTC(),
		}, nil
	}

	ctx, span := tracer.Start(ctx, "fx.Convert")
	defer span.End()
	span.SetAttributes(attribute.String("fx.from", string(src)), attribute.String("fx.to", string(dst)))

	snap, stale, err := s.snapshot(ctx, src)
	if err != nil {
		metrics.RecordConversion("unavailable")
		failSpan(span, err)
		return Conversion{}, err
	}
	rate, ok := snap.Rate(string(dst))
	if !ok {
		metrics.RecordConversion("not_found")
		err := fmt.Errorf("%w: %s to %s", ErrRateNotFound, src, dst)
		failSpan(span, err)
		return Conversion{}, err
	}
	if stale {
		metrics.RecordConversion("stale")
	} else {
		metrics.RecordConversion("ok")
	}
	return Conversion{
		From:            src,
		To:              dst,
		Amount:          amount,
		ConvertedAmount: money.Round2(amount.Mul(rate)),
		Rate:            rate,
		Timestamp:       snap.FetchedAt,
		Stale:           stale,
	}, nil
}

func (s *Service) snapshot(ctx context.Context, base money.Currency) (*Snapshot, bool, error) {
	key := string(base)
	snap, state := s.cache.Lookup(key, s.now())
	metrics.RecordCacheLookup(state.String())
	if state == StateFresh {
		return snap, false, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Another flight may have refreshed the partition while we queued.
		if cur, st := s.cache.Lookup(key, s.now()); st == StateFresh {
			return cur, nil
		}
		rates, err := s.provider.FetchRates(ctx, key)
		if err != nil {
			return nil, err
		}
		next := Snapshot{Base: key, Rates: rates, FetchedAt: s.now()}
		s.cache.Store(next)
		stored, _ := s.cache.Lookup(key, s.now())
		return stored, nil
	})
	if err == nil {
		return v.(*Snapshot), false, nil
	}

	snap, state = s.cache.Lookup(key, s.now())
	if snap == nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrRatesUnavailable, key, err)
	}
	s.logger.Warn("rate fetch failed, serving cached rates",
		slog.String("base", key),
		slog.Duration("age", s.now().Sub(snap.FetchedAt)),
		slog.String("error", err.Error()))
	return snap, state == StateStale, nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
