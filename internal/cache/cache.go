package cache

import (
	"context"
	"sync"
	"time"

	"github.com/example/goods-transport/internal/models"
)

// Cache is the TTL key-value gate in front of every mutating operation.
// Ban markers and tracking locations live here; absence of a key means
// "not banned" / "no tracking data".
type Cache interface {
	// Ban writes a ban marker for userID that expires after ttl.
	Ban(ctx context.Context, userID, reason string, ttl time.Duration) error
	// BanReason returns the ban reason and true when userID is banned.
	BanReason(ctx context.Context, userID string) (string, bool, error)

	// SetLocation stores a tracking sample under subjectID (carrier or request).
	SetLocation(ctx context.Context, kind, subjectID string, loc models.Location, ttl time.Duration) error
	// Location returns the sample and true when tracking data exists.
	Location(ctx context.Context, kind, subjectID string) (models.Location, bool, error)

	// SetUser / User cache identity-service lookups.
	SetUser(ctx context.Context, u models.User, ttl time.Duration) error
	User(ctx context.Context, userID string) (models.User, bool, error)
}

// Location kinds, mirroring the key shapes the ban-writer side populates.
const (
	KindCarrier = "driver:location"
	KindRequest = "request:tracking"
)

// MemoryCache is an in-process Cache for tests and keyless local runs.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	reason   string
	loc      models.Location
	user     models.User
	expireAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry)}
}

func (m *MemoryCache) Ban(ctx context.Context, userID, reason string, ttl time.Duration) error {
	m.put(banKey(userID), memEntry{reason: reason, expireAt: time.Now().Add(ttl)})
	return nil
}

func (m *MemoryCache) BanReason(ctx context.Context, userID string) (string, bool, error) {
	e, ok := m.get(banKey(userID))
	return e.reason, ok, nil
}

func (m *MemoryCache) SetLocation(ctx context.Context, kind, subjectID string, loc models.Location, ttl time.Duration) error {
	m.put(kind+":"+subjectID, memEntry{loc: loc, expireAt: time.Now().Add(ttl)})
	return nil
}

func (m *MemoryCache) Location(ctx context.Context, kind, subjectID string) (models.Location, bool, error) {
	e, ok := m.get(kind + ":" + subjectID)
	return e.loc, ok, nil
}

func (m *MemoryCache) SetUser(ctx context.Context, u models.User, ttl time.Duration) error {
	m.put(userKey(u.ID), memEntry{user: u, expireAt: time.Now().Add(ttl)})
	return nil
}

func (m *MemoryCache) User(ctx context.Context, userID string) (models.User, bool, error) {
	e, ok := m.get(userKey(userID))
	return e.user, ok, nil
}

func (m *MemoryCache) put(key string, e memEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
}

func (m *MemoryCache) get(key string) (memEntry, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return memEntry{}, false
	}
	if time.Now().After(e.expireAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return memEntry{}, false
	}
	return e, true
}

func banKey(userID string) string  { return "banned:user:" + userID }
func userKey(userID string) string { return "user:details:" + userID }
