package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// AuditLog is an append-only entry; Hash covers the entry and PrevHash so
// a tenant's entries form a chain.
type AuditLog struct {
	AuditID  string    `json:"auditId"`
	CorrID   string    `json:"corrId"`
	TenantID string    `json:"tenantId"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	Subject  string    `json:"subject"`
	Ts       time.Time `json:"timestamp"`
	Hash     string    `json:"hash"`
	PrevHash string    `json:"prevHash"`
}

type AuditRecorder interface {
	Append(ctx context.Context, entry AuditLog) error
	Last(ctx context.Context, tenantID string) (AuditLog, error)
}

var errNoAudit = errors.New("no audit entries")

// HashChain links entry to the tenant's last entry and appends it.
func HashChain(ctx context.Context, rec AuditRecorder, tenantID string, entry AuditLog) (AuditLog, error) {
	prev, _ := rec.Last(ctx, tenantID)
	entry.PrevHash = prev.Hash
	entry.Hash = hashAudit(entry)
	return entry, rec.Append(ctx, entry)
}

func hashAudit(entry AuditLog) string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s", entry.CorrID, entry.TenantID, entry.Actor, entry.Action, entry.Subject, entry.Ts.UTC().Format(time.RFC3339Nano), entry.PrevHash)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyChain reports the index of the first entry whose hash or link does
// not match, or -1 when the chain is intact.
func VerifyChain(entries []AuditLog) int {
	prev := ""
	for i, e := range entries {
		if e.PrevHash != prev || e.Hash != hashAudit(e) {
			return i
		}
		prev = e.Hash
	}
	return -1
}

// MemoryAuditRecorder keeps per-tenant chains in memory.
type MemoryAuditRecorder struct {
	mu       sync.Mutex
	byTenant map[string][]AuditLog
}

func NewMemoryAuditRecorder() *MemoryAuditRecorder {
	return &MemoryAuditRecorder{byTenant: map[string][]AuditLog{}}
}

func (m *MemoryAuditRecorder) Append(_ context.Context, entry AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTenant[entry.TenantID] = append(m.byTenant[entry.TenantID], entry)
	return nil
}

func (m *MemoryAuditRecorder) Last(_ context.Context, tenantID string) (AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.byTenant[tenantID]
	if len(list) == 0 {
		return AuditLog{}, errNoAudit
	}
	return list[len(list)-1], nil
}

// Entries returns a copy of the tenant's chain.
func (m *MemoryAuditRecorder) Entries(tenantID string) []AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditLog(nil), m.byTenant[tenantID]...)
}
