package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/typeshield/typeshield/internal/domain/model"
)

// MemoryStore implements Store in process memory. Used by tests and by
// zero-config runs (empty db_path); state is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]model.User // keyed by username
	templates map[uuid.UUID]model.Template
	attempts  []model.AttemptRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]model.User),
		templates: make(map[uuid.UUID]model.Template),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Username]; ok {
		return ErrDuplicateUser
	}
	s.users[user.Username] = user
	return nil
}

func (s *MemoryStore) GetUserByName(_ context.Context, username string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) SaveTemplate(_ context.Context, userID uuid.UUID, tmpl model.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates[userID] = tmpl
	return nil
}

func (s *MemoryStore) GetTemplate(_ context.Context, userID uuid.UUID) (model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmpl, ok := s.templates[userID]
	if !ok {
		return model.Template{}, ErrNoTemplate
	}
	return tmpl, nil
}

func (s *MemoryStore) LogAttempt(_ context.Context, rec model.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts = append(s.attempts, rec)
	return nil
}

func (s *MemoryStore) RecentAttempts(_ context.Context, userID uuid.UUID, limit int) ([]model.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.AttemptRecord, 0, limit)
	for _, rec := range s.attempts {
		if rec.UserID == userID {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) AttemptTotals(_ context.Context, userID uuid.UUID) (success, failure int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.attempts {
		if rec.UserID != userID {
			continue
		}
		switch rec.Status {
		case model.StatusSuccess:
			success++
		case model.StatusFailure:
			failure++
		}
	}
	return success, failure, nil
}

func (s *MemoryStore) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
