package store

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/concierge/internal/domain"
)

// MemoryReservationStore keeps reservations in process memory.
type MemoryReservationStore struct {
	mu   sync.Mutex
	list []domain.Reservation
	now  func() time.Time
}

// NewMemoryReservationStore creates an empty in-memory reservation store.
func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{now: nowUTC}
}

func (m *MemoryReservationStore) List(_ context.Context) []domain.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Reservation{}, m.list...)
}

func (m *MemoryReservationStore) Append(_ context.Context, r domain.Reservation) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = domain.NextReservationID(m.list)
	r.CreatedAt = m.now()
	r.UpdatedAt = nil
	m.list = append(m.list, r)
	return r, nil
}

func (m *MemoryReservationStore) FindByID(_ context.Context, id int) (domain.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.list {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Reservation{}, false
}

func (m *MemoryReservationStore) Update(_ context.Context, id int, mutate func(*domain.Reservation)) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.list {
		if m.list[i].ID == id {
			orig := m.list[i]
			mutate(&m.list[i])
			m.list[i].ID, m.list[i].TotalPrice, m.list[i].CreatedAt = orig.ID, orig.TotalPrice, orig.CreatedAt
			return m.list[i], nil
		}
	}
	return domain.Reservation{}, domain.ErrReservationNotFound
}

// MemorySessionStore keeps sessions in process memory. Stored values are
// copies, so callers never share state with the store.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*domain.Session)}
}

func (m *MemorySessionStore) Load(_ context.Context, userID string) *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s.Clone()
	}
	return domain.NewSession(userID)
}

func (m *MemorySessionStore) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s.Clone()
	return nil
}

func (m *MemorySessionStore) List(_ context.Context) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortByRecency(m.sessions)
}
