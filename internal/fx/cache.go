package fx

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is an immutable rate table for one base currency.
type Snapshot struct {
	Base      string
	Rates     map[string]decimal.Decimal
	FetchedAt time.Time
}

// Rate returns the rate to target; a zero rate counts as missing.
func (s *Snapshot) Rate(target string) (decimal.Decimal, bool) {
	r, ok := s.Rates[target]
	if !ok || r.IsZero() {
		return decimal.Zero, false
	}
	return r, true
}

// State describes a partition relative to the freshness window.
type State int

const (
	StateEmpty State = iota
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "miss"
	}
}

type partition struct {
	snap atomic.Pointer[Snapshot]
}

// RateCache keeps the last successful snapshot per base. Failures never evict:
// a partition only ever moves to a newer snapshot.
type RateCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	parts map[string]*partition
}

func NewRateCache(ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RateCache{ttl: ttl, parts: map[string]*partition{}}
}

// TTL returns the freshness window.
func (c *RateCache) TTL() time.Duration { return c.ttl }

// Lookup returns the snapshot for base and its state at now.
func (c *RateCache) Lookup(base string, now time.Time) (*Snapshot, State) {
	c.mu.RLock()
	p, ok := c.parts[base]
	c.mu.RUnlock()
	if !ok {
		return nil, StateEmpty
	}
	snap := p.snap.Load()
	if snap == nil {
		return nil, StateEmpty
	}
	if now.Sub(snap.FetchedAt) < c.ttl {
		return snap, StateFresh
	}
	return snap, StateStale
}

// Store replaces the snapshot for snap.Base. The rate map is copied so later
// writes by the caller cannot leak into readers.
func (c *RateCache) Store(snap Snapshot) {
	snap.Rates = maps.Clone(snap.Rates)
	p := c.partition(snap.Base)
	p.snap.Store(&snap)
}

func (c *RateCache) partition(base string) *partition {
	c.mu.RLock()
	p, ok := c.parts[base]
	c.mu.RUnlock()
	if ok {
		return p
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok = c.parts[base]; ok {
		return p
	}
	p = &partition{}
	c.parts[base] = p
	return p
}
