package memory

import (
	"context"
	"sort"
	"sync"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SaleEvent // keyed by event_id
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]*domain.SaleEvent),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(_ context.Context, e *domain.SaleEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[e.EventID] = copyEvent(e)
	return nil
}

// GetBySender retrieves all events of a sender, ordered by sequence ASC.
func (s *EventStore) GetBySender(_ context.Context, sender string) ([]*domain.SaleEvent, error) {
	return s.filter(func(e *domain.SaleEvent) bool {
		return e.Sender == sender
	}), nil
}

// GetByTimeRange retrieves events within [start, end] (inclusive).
func (s *EventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.SaleEvent, error) {
	return s.filter(func(e *domain.SaleEvent) bool {
		return e.Timestamp >= start && e.Timestamp <= end
	}), nil
}

// LastSequence returns the highest stored sequence.
func (s *EventStore) LastSequence(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last uint64
	for _, e := range s.data {
		if e.Sequence > last {
			last = e.Sequence
		}
	}
	return last, nil
}

func (s *EventStore) filter(match func(*domain.SaleEvent) bool) []*domain.SaleEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SaleEvent
	for _, e := range s.data {
		if match(e) {
			result = append(result, copyEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Sequence < result[j].Sequence
	})

	return result
}

func copyEvent(e *domain.SaleEvent) *domain.SaleEvent {
	out := *e
	out.Attrs = append([]domain.Attribute(nil), e.Attrs...)
	out.Messages = make([]domain.Message, len(e.Messages))
	for i, m := range e.Messages {
		m.Coins = domain.CopyCoins(m.Coins)
		out.Messages[i] = m
	}
	return &out
}

// Verify interface compliance at compile time.
var _ storage.EventStore = (*EventStore)(nil)
