package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/logging"
)

// errCorrupt marks a backing file that exists but cannot be parsed. Reads
// treat it as empty; writes refuse to replace it.
var errCorrupt = errors.New("store: backing file is unreadable")

// readJSON decodes path into v. A missing file leaves v untouched.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", errCorrupt, path, err)
	}
	return nil
}

// writeJSON replaces path atomically with the JSON encoding of v.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// FileReservationStore keeps reservations as a JSON array in one file.
type FileReservationStore struct {
	path string
	log  *logging.Logger
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileReservationStore creates a store backed by path.
func NewFileReservationStore(path string, log *logging.Logger) *FileReservationStore {
	return &FileReservationStore{path: path, log: log.Sub("store"), now: nowUTC}
}

func (s *FileReservationStore) read() ([]domain.Reservation, error) {
	list := []domain.Reservation{}
	if err := readJSON(s.path, &list); err != nil {
		return []domain.Reservation{}, err
	}
	return list, nil
}

// List returns all reservations; a missing or unreadable file yields none.
func (s *FileReservationStore) List(_ context.Context) []domain.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.read()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read reservations")
	}
	return list
}

// Append stores r under max(existing id)+1.
func (s *FileReservationStore) Append(_ context.Context, r domain.Reservation) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read()
	if err != nil {
		return domain.Reservation{}, err
	}
	r.ID = domain.NextReservationID(list)
	r.CreatedAt = s.now()
	r.UpdatedAt = nil
	if err := writeJSON(s.path, append(list, r)); err != nil {
		return domain.Reservation{}, fmt.Errorf("writing reservations: %w", err)
	}
	return r, nil
}

// FindByID returns the reservation with the given id.
func (s *FileReservationStore) FindByID(ctx context.Context, id int) (domain.Reservation, bool) {
	for _, r := range s.List(ctx) {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Reservation{}, false
}

// Update applies mutate to the reservation with the given id. The id, price
// and creation time cannot be changed.
func (s *FileReservationStore) Update(_ context.Context, id int, mutate func(*domain.Reservation)) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read()
	if err != nil {
		return domain.Reservation{}, err
	}
	for i := range list {
		if list[i].ID != id {
			continue
		}
		orig := list[i]
		mutate(&list[i])
		list[i].ID, list[i].TotalPrice, list[i].CreatedAt = orig.ID, orig.TotalPrice, orig.CreatedAt
		if err := writeJSON(s.path, list); err != nil {
			return domain.Reservation{}, fmt.Errorf("writing reservations: %w", err)
		}
		return list[i], nil
	}
	return domain.Reservation{}, domain.ErrReservationNotFound
}

// FileSessionStore keeps all sessions as one JSON object keyed by user id.
type FileSessionStore struct {
	path string
	log  *logging.Logger
	mu   sync.Mutex
}

// NewFileSessionStore creates a store backed by path.
func NewFileSessionStore(path string, log *logging.Logger) *FileSessionStore {
	return &FileSessionStore{path: path, log: log.Sub("store")}
}

func (s *FileSessionStore) read() (map[string]*domain.Session, error) {
	all := map[string]*domain.Session{}
	if err := readJSON(s.path, &all); err != nil {
		return map[string]*domain.Session{}, err
	}
	return all, nil
}

// Load returns the stored session or a fresh one.
func (s *FileSessionStore) Load(_ context.Context, userID string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read sessions")
	}
	sess, ok := all[userID]
	if !ok || sess == nil {
		return domain.NewSession(userID)
	}
	sess.UserID = userID
	return sess
}

// Save overwrites the record for the session's user.
func (s *FileSessionStore) Save(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	all[sess.UserID] = sess
	if err := writeJSON(s.path, all); err != nil {
		return fmt.Errorf("writing sessions: %w", err)
	}
	return nil
}

// List returns all user ids with a stored session, most recent first.
func (s *FileSessionStore) List(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read sessions")
		return nil
	}
	return sortByRecency(all)
}

func sortByRecency(all map[string]*domain.Session) []string {
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := all[ids[i]].LastUpdated, all[ids[j]].LastUpdated
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ids[i] < ids[j]
	})
	return ids
}
