// internal/infrastructure/persistence/userstore/memory_store.go
package userstore

import (
	"sync"

	"github.com/MrNaPaSS/menutrade/internal/core/domain/referral"
)

// MemoryStore хранилище в памяти без персистентности. Для тестов.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*referral.User
	order []string

	// SaveErr позволяет тестам имитировать сбой сохранения
	SaveErr error
	// Saves считает вызовы Save
	Saves int
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*referral.User),
	}
}

func (s *MemoryStore) Get(id string) (*referral.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	return user, ok
}

func (s *MemoryStore) Put(u *referral.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; !exists {
		s.order = append(s.order, u.ID)
	}
	s.users[u.ID] = u
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		return
	}
	delete(s.users, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *MemoryStore) All() []*referral.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*referral.User, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.users[id])
	}
	return out
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}

func (s *MemoryStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Saves++
	return s.SaveErr
}

func (s *MemoryStore) Load() error {
	return nil
}
