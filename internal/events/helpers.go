// internal/events/helpers.go
package events

import (
	"time"

	"github.com/google/uuid"
)

// Publisher - то, что нужно хелперам и доменному коду от шины.
// *EventBus реализует интерфейс; тесты подставляют запись в срез.
type Publisher interface {
	Publish(event Event) error
}

// PublishReferralClick публикует событие клика по реферальной ссылке
func PublishReferralClick(bus Publisher, source string, data ReferralClickData) error {
	return publish(bus, EventReferralClick, source, data)
}

// PublishReferralActivated публикует событие активации реферала
func PublishReferralActivated(bus Publisher, source string, data ReferralActivatedData) error {
	return publish(bus, EventReferralActivated, source, data)
}

// PublishTierReached публикует событие достижения уровня
func PublishTierReached(bus Publisher, source string, data TierReachedData) error {
	return publish(bus, EventTierReached, source, data)
}

// PublishBonusRequested публикует событие заявки на бонус
func PublishBonusRequested(bus Publisher, source string, data BonusRequestData) error {
	return publish(bus, EventBonusRequested, source, data)
}

// PublishBonusApproved публикует событие одобрения бонуса
func PublishBonusApproved(bus Publisher, source string, data BonusDecisionData) error {
	return publish(bus, EventBonusApproved, source, data)
}

// PublishBonusRejected публикует событие отклонения бонуса
func PublishBonusRejected(bus Publisher, source string, data BonusDecisionData) error {
	return publish(bus, EventBonusRejected, source, data)
}

func publish(bus Publisher, eventType EventType, source string, payload interface{}) error {
	if bus == nil {
		return nil
	}

	return bus.Publish(Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
