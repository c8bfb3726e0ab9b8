package users

import (
	"context"
	"sync"
	"time"

	"papeleria/models"
)

// MemoryStore keeps users in process. It backs tests and local runs without
// MongoDB.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryStore(seed ...models.User) *MemoryStore {
	s := &MemoryStore{users: make(map[string]models.User)}
	for _, u := range seed {
		s.users[u.UserID] = u
	}
	return s
}

func (s *MemoryStore) FindUser(_ context.Context, userID string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == NormalizeEmail(email) {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (s *MemoryStore) CreateUser(_ context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	s.users[u.UserID] = u
	return nil
}

func (s *MemoryStore) UpdateContact(_ context.Context, userID string, c models.ContactUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	email := NormalizeEmail(c.Email)
	for id, other := range s.users {
		if id != userID && other.Email == email {
			return models.User{}, ErrEmailTaken
		}
	}
	u.Email = email
	u.Address = c.Address
	u.Unit = c.Unit
	u.PhoneNumber = c.Phone
	u.UpdatedAt = time.Now()
	s.users[userID] = u
	return u, nil
}

// Put stores u as is, replacing any user with the same id.
func (s *MemoryStore) Put(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = u
}
