// internal/events/subscribers.go
package events

import (
	"log"
)

// BaseSubscriber - базовая реализация подписчика
type BaseSubscriber struct {
	name             string
	subscribedEvents []EventType
	handler          func(Event) error
}

// NewBaseSubscriber создает нового подписчика
func NewBaseSubscriber(name string, events []EventType, handler func(Event) error) *BaseSubscriber {
	return &BaseSubscriber{
		name:             name,
		subscribedEvents: events,
		handler:          handler,
	}
}

// HandleEvent обрабатывает событие
func (s *BaseSubscriber) HandleEvent(event Event) error {
	return s.handler(event)
}

// GetName возвращает имя подписчика
func (s *BaseSubscriber) GetName() string {
	return s.name
}

// GetSubscribedEvents возвращает типы событий
func (s *BaseSubscriber) GetSubscribedEvents() []EventType {
	return s.subscribedEvents
}

// ConsoleLoggerSubscriber - подписчик для логирования в консоль
type ConsoleLoggerSubscriber struct {
	BaseSubscriber
}

func NewConsoleLoggerSubscriber() *ConsoleLoggerSubscriber {
	return &ConsoleLoggerSubscriber{
		BaseSubscriber: *NewBaseSubscriber(
			"console_logger",
			[]EventType{
				EventReferralClick,
				EventReferralActivated,
				EventTierReached,
				EventBonusRequested,
				EventBonusApproved,
				EventBonusRejected,
				EventError,
			},
			func(event Event) error {
				switch event.Type {
				case EventReferralClick:
					if data, ok := event.Payload.(ReferralClickData); ok {
						log.Printf("👆 Клик по реферальной ссылке: %s → %s",
							data.UserID, data.ReferrerID)
					}
				case EventReferralActivated:
					if data, ok := event.Payload.(ReferralActivatedData); ok {
						log.Printf("🎉 Реферал активирован: %s (у %s теперь %d)",
							data.UserID, data.ReferrerID, data.ActivatedCount)
					}
				case EventTierReached:
					if data, ok := event.Payload.(TierReachedData); ok {
						log.Printf("🏆 Достигнут уровень %s: реферер %s",
							data.TierID, data.ReferrerID)
					}
				case EventBonusRequested:
					if data, ok := event.Payload.(BonusRequestData); ok {
						log.Printf("📨 Заявка на бонус %s от %s", data.TierID, data.UserID)
					}
				case EventBonusApproved:
					if data, ok := event.Payload.(BonusDecisionData); ok {
						log.Printf("✅ Бонус %s одобрен для %s", data.TierID, data.UserID)
					}
				case EventBonusRejected:
					if data, ok := event.Payload.(BonusDecisionData); ok {
						log.Printf("🚫 Бонус %s отклонён для %s", data.TierID, data.UserID)
					}
				case EventError:
					log.Printf("❌ Событие ошибки: %v", event.Data)
				}
				return nil
			},
		),
	}
}
