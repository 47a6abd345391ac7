package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/goods-transport/internal/models"
)

// RequestStore defines persistence for requests and their history ledger.
type RequestStore interface {
	SaveRequest(ctx context.Context, r *models.Request) error
	UpdateRequest(ctx context.Context, r *models.Request) error
	// GetRequest returns ok=false when the id is unknown.
	GetRequest(ctx context.Context, id string) (*models.Request, bool, error)

	AppendHistory(ctx context.Context, h models.HistoryEntry) error
	HistoryFor(ctx context.Context, requestID string) ([]models.HistoryEntry, error)

	ListBySender(ctx context.Context, senderID string, status models.Status) ([]*models.Request, error)
	ListByCarrier(ctx context.Context, carrierID string, status models.Status) ([]*models.Request, error)
	// ListStalePending returns PENDING requests created in (youngerThan, olderThan].
	ListStalePending(ctx context.Context, olderThan, youngerThan time.Time) ([]*models.Request, error)
	DeliveredBetween(ctx context.Context, from, to time.Time) ([]*models.Request, error)
}

// MemoryStore keeps everything in process memory. Used for tests and
// keyless local runs; writes are serialized by a single mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	reqs    map[string]models.Request
	history map[string][]models.HistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reqs:    make(map[string]models.Request),
		history: make(map[string][]models.HistoryEntry),
	}
}

func (m *MemoryStore) SaveRequest(ctx context.Context, r *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs[r.ID] = *r
	return nil
}

func (m *MemoryStore) UpdateRequest(ctx context.Context, r *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, id string) (*models.Request, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reqs[id]
	if !ok {
		return nil, false, nil
	}
	cp := r
	return &cp, true, nil
}

func (m *MemoryStore) AppendHistory(ctx context.Context, h models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[h.RequestID] = append(m.history[h.RequestID], h)
	return nil
}

func (m *MemoryStore) HistoryFor(ctx context.Context, requestID string) ([]models.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.history[requestID]
	out := make([]models.HistoryEntry, len(rows))
	copy(out, rows)
	return out, nil
}

func (m *MemoryStore) ListBySender(ctx context.Context, senderID string, status models.Status) ([]*models.Request, error) {
	return m.filter(func(r models.Request) bool {
		return r.SenderID == senderID && (status == "" || r.Status == status)
	}), nil
}

func (m *MemoryStore) ListByCarrier(ctx context.Context, carrierID string, status models.Status) ([]*models.Request, error) {
	return m.filter(func(r models.Request) bool {
		return r.CarrierID == carrierID && (status == "" || r.Status == status)
	}), nil
}

func (m *MemoryStore) ListStalePending(ctx context.Context, olderThan, youngerThan time.Time) ([]*models.Request, error) {
	return m.filter(func(r models.Request) bool {
		return r.Status == models.StatusPending &&
			r.CreatedAt.Before(olderThan) && r.CreatedAt.After(youngerThan)
	}), nil
}

func (m *MemoryStore) DeliveredBetween(ctx context.Context, from, to time.Time) ([]*models.Request, error) {
	return m.filter(func(r models.Request) bool {
		return r.Status == models.StatusDelivered && r.DeliveredAt != nil &&
			!r.DeliveredAt.Before(from) && r.DeliveredAt.Before(to)
	}), nil
}

func (m *MemoryStore) filter(keep func(models.Request) bool) []*models.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Request
	for _, r := range m.reqs {
		if keep(r) {
			cp := r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
