// internal/infrastructure/persistence/userstore/postgres_store.go
package userstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/MrNaPaSS/menutrade/internal/core/domain/referral"
	"github.com/MrNaPaSS/menutrade/pkg/logger"
)

// PostgresConfig параметры подключения к PostgreSQL
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// PostgresStore реализует Store поверх PostgreSQL. Записи зеркалируются
// в памяти, Save досылает в базу только изменённые строки. Реферальный
// блок лежит в JSONB-колонке, схема таблицы не зависит от его формы.
type PostgresStore struct {
	mu      sync.RWMutex
	db      *sqlx.DB
	users   map[string]*referral.User
	order   []string
	dirty   map[string]bool
	deleted map[string]bool
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	registered_at TIMESTAMP WITH TIME ZONE NOT NULL,
	pocket_option_id TEXT,
	deposited BOOLEAN NOT NULL DEFAULT FALSE,
	referral JSONB
);

CREATE INDEX IF NOT EXISTS idx_users_seq ON users(seq);
`

// NewPostgresStore подключается к базе, создает схему и загружает пользователей
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("подключение к postgres: %w", err)
	}

	// Настройки пула соединений
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(createUsersTable); err != nil {
		return nil, fmt.Errorf("создание схемы: %w", err)
	}

	s := &PostgresStore{
		db:      db,
		users:   make(map[string]*referral.User),
		dirty:   make(map[string]bool),
		deleted: make(map[string]bool),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}

	logger.Info("✅ PostgreSQL хранилище пользователей готово (%s:%d/%s)",
		cfg.Host, cfg.Port, cfg.Database)
	return s, nil
}

func (s *PostgresStore) Get(id string) (*referral.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	return user, ok
}

func (s *PostgresStore) Put(u *referral.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; !exists {
		s.order = append(s.order, u.ID)
	}
	s.users[u.ID] = u
	s.dirty[u.ID] = true
	delete(s.deleted, u.ID)
}

func (s *PostgresStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		return
	}
	delete(s.users, id)
	delete(s.dirty, id)
	s.deleted[id] = true
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *PostgresStore) All() []*referral.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*referral.User, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.users[id])
	}
	return out
}

func (s *PostgresStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}

// Save досылает в базу изменённые и удалённые записи.
// При ошибке грязные пометки сохраняются до следующего вызова.
func (s *PostgresStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.dirty) == 0 && len(s.deleted) == 0 {
		return nil
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("открытие транзакции: %w", err)
	}
	defer tx.Rollback()

	upsert := `
	INSERT INTO users (id, username, first_name, registered_at, pocket_option_id, deposited, referral)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		username = EXCLUDED.username,
		first_name = EXCLUDED.first_name,
		pocket_option_id = EXCLUDED.pocket_option_id,
		deposited = EXCLUDED.deposited,
		referral = EXCLUDED.referral
	`

	for id := range s.dirty {
		user := s.users[id]
		var referralJSON []byte
		if user.Referral != nil {
			referralJSON, err = json.Marshal(user.Referral)
			if err != nil {
				return fmt.Errorf("сериализация реферального блока %s: %w", id, err)
			}
		}

		if _, err := tx.Exec(upsert,
			user.ID, user.Username, user.FirstName, user.RegisteredAt,
			user.PocketOptionID, user.Deposited, referralJSON,
		); err != nil {
			return fmt.Errorf("upsert пользователя %s: %w", id, err)
		}
	}

	for id := range s.deleted {
		if _, err := tx.Exec(`DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("удаление пользователя %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("коммит: %w", err)
	}

	s.dirty = make(map[string]bool)
	s.deleted = make(map[string]bool)
	return nil
}

// Load загружает всех пользователей в память в порядке создания
func (s *PostgresStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
	SELECT id, username, first_name, registered_at, pocket_option_id, deposited, referral
	FROM users
	ORDER BY seq ASC
	`)
	if err != nil {
		return fmt.Errorf("чтение пользователей: %w", err)
	}
	defer rows.Close()

	users := make(map[string]*referral.User)
	var order []string

	for rows.Next() {
		var user referral.User
		var pocketOptionID sql.NullString
		var referralJSON []byte

		if err := rows.Scan(
			&user.ID, &user.Username, &user.FirstName, &user.RegisteredAt,
			&pocketOptionID, &user.Deposited, &referralJSON,
		); err != nil {
			return fmt.Errorf("чтение строки: %w", err)
		}

		if pocketOptionID.Valid {
			id := pocketOptionID.String
			user.PocketOptionID = &id
		}
		if len(referralJSON) > 0 {
			var rec referral.Record
			if err := json.Unmarshal(referralJSON, &rec); err != nil {
				return fmt.Errorf("разбор реферального блока %s: %w", user.ID, err)
			}
			user.Referral = &rec
		}

		users[user.ID] = &user
		order = append(order, user.ID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("обход строк: %w", err)
	}

	s.users = users
	s.order = order
	s.dirty = make(map[string]bool)
	s.deleted = make(map[string]bool)

	logger.Info("📁 Загружено %d пользователей из PostgreSQL", len(users))
	return nil
}

// Close закрывает соединение с базой
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
