// internal/infrastructure/cache/redis/cache.go
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Cache struct {
	client *redis.Client
	prefix string
}

func NewCache(addr, password string, db int) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: "menutrade:",
	}
}

// Ping проверяет доступность Redis
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Set устанавливает значение в Redis с TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	fullKey := c.prefix + key

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, fullKey, data, ttl).Err()
}

// Get получает значение из Redis
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	fullKey := c.prefix + key

	data, err := c.client.Get(ctx, fullKey).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

// Delete удаляет ключ из Redis
func (c *Cache) Delete(ctx context.Context, key string) error {
	fullKey := c.prefix + key
	return c.client.Del(ctx, fullKey).Err()
}

// Состояние диалога живёт сутки: забытый на полпути ввод не должен
// ловить пользователя неделю спустя
const dialogStateTTL = 24 * time.Hour

// SetDialogState запоминает, какого ввода бот ждёт от пользователя
func (c *Cache) SetDialogState(ctx context.Context, userID, state string) error {
	return c.Set(ctx, fmt.Sprintf("dialog:%s", userID), state, dialogStateTTL)
}

// GetDialogState возвращает состояние диалога, "" если его нет
func (c *Cache) GetDialogState(ctx context.Context, userID string) (string, error) {
	var state string
	err := c.Get(ctx, fmt.Sprintf("dialog:%s", userID), &state)
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return state, nil
}

// ClearDialogState сбрасывает состояние диалога
func (c *Cache) ClearDialogState(ctx context.Context, userID string) error {
	return c.Delete(ctx, fmt.Sprintf("dialog:%s", userID))
}

// Close закрывает соединение с Redis
func (c *Cache) Close() error {
	return c.client.Close()
}
