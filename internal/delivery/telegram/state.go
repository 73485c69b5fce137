// internal/delivery/telegram/state.go
package telegram

import (
	"context"
	"strings"
	"sync"

	"github.com/MrNaPaSS/menutrade/pkg/logger"
)

// Состояния диалога
const (
	StateNone              = ""
	StateAwaitingAccountID = "awaiting_account_id"

	// Ожидание TradingView username для заявки на бонус; после
	// двоеточия хранится ID уровня
	stateAwaitingTradingViewPrefix = "awaiting_tradingview:"
)

// StateAwaitingTradingView кодирует ожидание TradingView username для уровня
func StateAwaitingTradingView(tierID string) string {
	return stateAwaitingTradingViewPrefix + tierID
}

// TradingViewTier извлекает ID уровня из состояния ожидания TradingView
func TradingViewTier(state string) (string, bool) {
	if !strings.HasPrefix(state, stateAwaitingTradingViewPrefix) {
		return "", false
	}
	return strings.TrimPrefix(state, stateAwaitingTradingViewPrefix), true
}

// StateStore хранит состояние диалога пользователя.
// Redis-кэш реализует интерфейс; при выключенном Redis работает
// потерпимая к рестартам память процесса.
type StateStore interface {
	SetDialogState(ctx context.Context, userID, state string) error
	GetDialogState(ctx context.Context, userID string) (string, error)
	ClearDialogState(ctx context.Context, userID string) error
}

// MemoryStateStore - состояние диалогов в памяти процесса
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]string
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]string)}
}

func (s *MemoryStateStore) SetDialogState(ctx context.Context, userID, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = state
	return nil
}

func (s *MemoryStateStore) GetDialogState(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[userID], nil
}

func (s *MemoryStateStore) ClearDialogState(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

// dialogState читает состояние, не роняя обработку при сбое кэша
func dialogState(ctx context.Context, store StateStore, userID string) string {
	state, err := store.GetDialogState(ctx, userID)
	if err != nil {
		logger.Warn("не удалось прочитать состояние диалога %s: %v", userID, err)
		return StateNone
	}
	return state
}
