// internal/infrastructure/persistence/userstore/json_store.go
package userstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/MrNaPaSS/menutrade/internal/core/domain/referral"
	"github.com/MrNaPaSS/menutrade/pkg/logger"
)

// JSONStore хранит всех пользователей одним JSON-документом на диске.
// Запись атомарная: временный файл + rename, полуобновлённого файла
// на диске не бывает. Грязный флаг позволяет дослать несохранённое
// состояние при следующем Save после сбоя записи.
type JSONStore struct {
	mu    sync.RWMutex
	path  string
	users map[string]*referral.User
	order []string // порядок добавления
	dirty bool
}

// NewJSONStore создает хранилище и загружает файл, если он существует
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{
		path:  path,
		users: make(map[string]*referral.User),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get возвращает пользователя по ID
func (s *JSONStore) Get(id string) (*referral.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	return user, ok
}

// Put добавляет или обновляет пользователя в памяти
func (s *JSONStore) Put(u *referral.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; !exists {
		s.order = append(s.order, u.ID)
	}
	s.users[u.ID] = u
	s.dirty = true
}

// Delete удаляет пользователя
func (s *JSONStore) Delete(id string) {
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
	s.dirty = true
}

// All возвращает пользователей в порядке добавления
func (s *JSONStore) All() []*referral.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*referral.User, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.users[id])
	}
	return out
}

// Len возвращает количество пользователей
func (s *JSONStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}

// Save переписывает файл целиком, если есть несохранённые изменения
func (s *JSONStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("сериализация пользователей: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("создание каталога %s: %w", dir, err)
		}
	}

	if err := renameio.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("запись %s: %w", s.path, err)
	}

	s.dirty = false
	return nil
}

// Load читает файл с диска. Отсутствующий файл — пустое хранилище.
func (s *JSONStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("📁 Файл пользователей %s не найден, начинаем с пустого", s.path)
			return nil
		}
		return fmt.Errorf("чтение %s: %w", s.path, err)
	}

	users := make(map[string]*referral.User)
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("разбор %s: %w", s.path, err)
	}

	s.users = users
	s.order = sortedIDs(users)
	for _, id := range s.order {
		s.users[id].ID = id
	}
	s.dirty = false

	logger.Info("📁 Загружено %d пользователей из %s", len(users), s.path)
	return nil
}

// sortedIDs возвращает ключи в детерминированном порядке: числовые ID
// по возрастанию, нечисловые в конце лексикографически
func sortedIDs(users map[string]*referral.User) []string {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, errI := strconv.ParseInt(ids[i], 10, 64)
		nj, errJ := strconv.ParseInt(ids[j], 10, 64)
		switch {
		case errI == nil && errJ == nil:
			return ni < nj
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
	return ids
}
