package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/quotla/quotla-api/internal/observability/logging"
	"github.com/quotla/quotla-api/internal/observability/metrics"
)

const defaultTenant = "anonymous"

type ctxKey int

const (
	corrIDKey ctxKey = iota
	tenantIDKey
	loggerKey
)

// Correlation reads X-Correlation-Id and X-Tenant-Id, generating a
// correlation id when absent, and attaches a request-scoped logger.
func Correlation(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get("X-Correlation-Id")
			if corrID == "" {
				corrID = uuid.NewString()
			}
			tenantID := r.Header.Get("X-Tenant-Id")
			if tenantID == "" {
				tenantID = defaultTenant
			}
			w.Header().Set("X-Correlation-Id", corrID)

			ctx := context.WithValue(r.Context(), corrIDKey, corrID)
			ctx = context.WithValue(ctx, tenantIDKey, tenantID)
			ctx = context.WithValue(ctx, loggerKey, logging.CorrelationLogger(logger, corrID, tenantID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestIDs(ctx context.Context) (corrID, tenantID string) {
	corrID, _ = ctx.Value(corrIDKey).(string)
	tenantID, _ = ctx.Value(tenantIDKey).(string)
	if tenantID == "" {
		tenantID = defaultTenant
	}
	return corrID, tenantID
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

type clientBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter is a token bucket per client address. X-Tenant-Id is not
// authenticated, so it labels logs and audit entries but never selects the
// bucket.
type ClientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limit   rate.Limit
	burst   int
	retry   time.Duration
	idle    time.Duration
	swept   time.Time
	now     func() time.Time
}

// NewClientLimiter allows perMinute requests per client with the given
// burst. perMinute <= 0 disables limiting.
func NewClientLimiter(perMinute, burst int) *ClientLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	interval := time.Minute / time.Duration(perMinute)
	return &ClientLimiter{
		buckets: map[string]*clientBucket{},
		limit:   rate.Every(interval),
		burst:   burst,
		retry:   interval,
		// a bucket idle this long has refilled completely, so dropping it
		// loses nothing
		idle: interval * time.Duration(burst),
		now:  time.Now,
	}
}

func (l *ClientLimiter) Allow(client string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	if now.Sub(l.swept) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.buckets[client]
	if !ok {
		b = &clientBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[client] = b
	}
	b.lastSeen = now
	allowed := b.lim.AllowN(now, 1)
	l.mu.Unlock()
	if allowed {
		return true, 0
	}
	return false, l.retry
}

// sweep drops idle buckets. Callers hold l.mu.
func (l *ClientLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.buckets, k)
		}
	}
	l.swept = now
}

// clientAddr is the host part of RemoteAddr. Behind a trusted proxy,
// middleware.RealIP has already rewritten RemoteAddr.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects requests over the client's budget with 429.
func RateLimit(l *ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID, _ := requestIDs(r.Context())
			client := clientAddr(r)
			if ok, retryAfter := l.Allow(client); !ok {
				metrics.RateLimitedTotal.Inc()
				loggerFrom(r.Context()).Warn("rate limited", slog.String("client", client))
				writeJSON(w, http.StatusTooManyRequests, corrID,
					ErrorBody{Code: "RATE_LIMITED", Message: "too many requests", CorrID: corrID, Retryable: true},
					map[string]string{"Retry-After": formatRetryAfter(retryAfter)})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func formatRetryAfter(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// Metrics records count and latency per chi route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// Recover turns handler panics into a 500 body.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				corrID, _ := requestIDs(r.Context())
				loggerFrom(r.Context()).Error("panic in handler", slog.Any("panic", v))
				writeJSON(w, http.StatusInternalServerError, corrID,
					ErrorBody{Code: "INTERNAL_ERROR", Message: "internal error", CorrID: corrID, Retryable: true}, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
