// internal/events/types.go
package events

import "time"

// EventType - тип события
type EventType string

const (
	// События реферальной программы
	EventReferralClick     EventType = "referral_click"
	EventReferralActivated EventType = "referral_activated"
	EventTierReached       EventType = "tier_reached"
	EventBonusRequested    EventType = "bonus_requested"
	EventBonusApproved     EventType = "bonus_approved"
	EventBonusRejected     EventType = "bonus_rejected"

	// События системы
	EventSystemStarted EventType = "system_started"
	EventSystemStopped EventType = "system_stopped"
	EventError         EventType = "error"
)

// Event - базовое событие
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   interface{}            `json:"payload"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ReferralClickData - полезная нагрузка referral_click
type ReferralClickData struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	ReferrerID string `json:"referrer_id"`
}

// ReferralActivatedData - полезная нагрузка referral_activated
type ReferralActivatedData struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	ReferrerID     string `json:"referrer_id"`
	ActivatedCount int    `json:"activated_count"`
}

// TierReachedData - полезная нагрузка tier_reached
type TierReachedData struct {
	ReferrerID     string `json:"referrer_id"`
	TierID         string `json:"tier_id"`
	TierName       string `json:"tier_name"`
	ActivatedCount int    `json:"activated_count"`
}

// BonusRequestData - полезная нагрузка bonus_requested
type BonusRequestData struct {
	UserID              string `json:"user_id"`
	Username            string `json:"username"`
	TierID              string `json:"tier_id"`
	TierName            string `json:"tier_name"`
	TradingViewUsername string `json:"tradingview_username,omitempty"`
}

// BonusDecisionData - полезная нагрузка bonus_approved / bonus_rejected
type BonusDecisionData struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	TierID     string `json:"tier_id"`
	TierName   string `json:"tier_name"`
	RewardDays int    `json:"reward_days"`
	Mentorship bool   `json:"mentorship"`
	Reason     string `json:"reason,omitempty"`
}

// ErrorEvent - событие ошибки
type ErrorEvent struct {
	Error     error  `json:"error"`
	Component string `json:"component"`
	Context   string `json:"context,omitempty"`
}

// Subscriber - интерфейс подписчика
type Subscriber interface {
	HandleEvent(event Event) error
	GetName() string
	GetSubscribedEvents() []EventType
}

// Middleware - промежуточное ПО для обработки событий
type Middleware interface {
	Process(event Event, next HandlerFunc) error
}

// HandlerFunc - функция обработки события
type HandlerFunc func(event Event) error
