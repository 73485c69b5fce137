// internal/adapters/notification/notifier.go
package notification

import (
	"fmt"
	"strconv"

	"github.com/MrNaPaSS/menutrade/internal/events"
	"github.com/MrNaPaSS/menutrade/pkg/logger"
)

// Sender отправляет сообщение в чат. Реализуется Telegram-клиентом.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Settings переключатели уведомлений
type Settings struct {
	NotifyUser  bool
	NotifyAdmin bool
	AdminChatID int64
}

// Notifier подписывается на события реферальной программы и рассылает
// уведомления. Ядро о Telegram не знает: выключенные уведомления не
// влияют на бизнес-логику.
type Notifier struct {
	sender   Sender
	settings Settings
}

// NewNotifier создает нотификатор
func NewNotifier(sender Sender, settings Settings) *Notifier {
	return &Notifier{sender: sender, settings: settings}
}

// Register подписывает нотификатор на шину
func (n *Notifier) Register(bus *events.EventBus) {
	sub := events.NewBaseSubscriber(
		"referral_notifier",
		[]events.EventType{
			events.EventReferralActivated,
			events.EventTierReached,
			events.EventBonusRequested,
			events.EventBonusApproved,
			events.EventBonusRejected,
		},
		n.handle,
	)

	for _, et := range sub.GetSubscribedEvents() {
		bus.Subscribe(et, sub)
	}
}

func (n *Notifier) handle(event events.Event) error {
	switch event.Type {
	case events.EventReferralActivated:
		data, ok := event.Payload.(events.ReferralActivatedData)
		if !ok {
			return nil
		}
		return n.toUser(data.ReferrerID, fmt.Sprintf(
			"🎉 Ваш реферал активирован! Активных рефералов: %d\n/stats — ваш прогресс",
			data.ActivatedCount))

	case events.EventTierReached:
		data, ok := event.Payload.(events.TierReachedData)
		if !ok {
			return nil
		}
		return n.toUser(data.ReferrerID, fmt.Sprintf(
			"🏆 Поздравляем! Вы достигли уровня «%s».\n/bonus %s — запросить бонус",
			data.TierName, data.TierID))

	case events.EventBonusRequested:
		data, ok := event.Payload.(events.BonusRequestData)
		if !ok {
			return nil
		}
		text := fmt.Sprintf(
			"📨 Новая заявка на бонус «%s»\nПользователь: %s (id %s)",
			data.TierName, data.Username, data.UserID)
		if data.TradingViewUsername != "" {
			text += "\nTradingView: " + data.TradingViewUsername
		}
		text += fmt.Sprintf("\n/approve %s | /reject %s", data.UserID, data.UserID)
		return n.toAdmin(text)

	case events.EventBonusApproved:
		data, ok := event.Payload.(events.BonusDecisionData)
		if !ok {
			return nil
		}
		text := fmt.Sprintf("✅ Ваша заявка на «%s» одобрена!", data.TierName)
		if data.Mentorship {
			text += "\nС вами свяжутся по поводу менторства."
		} else if data.RewardDays > 0 {
			text += fmt.Sprintf("\nДоступ выдан на %d дней.", data.RewardDays)
		}
		return n.toUser(data.UserID, text)

	case events.EventBonusRejected:
		data, ok := event.Payload.(events.BonusDecisionData)
		if !ok {
			return nil
		}
		text := fmt.Sprintf("🚫 Ваша заявка на «%s» отклонена.", data.TierName)
		if data.Reason != "" {
			text += "\nПричина: " + data.Reason
		}
		return n.toUser(data.UserID, text)
	}

	return nil
}

func (n *Notifier) toUser(userID, text string) error {
	if !n.settings.NotifyUser || n.sender == nil {
		return nil
	}

	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		logger.Warn("нечисловой ID пользователя для уведомления: %s", userID)
		return nil
	}
	return n.sender.SendMessage(chatID, text)
}

func (n *Notifier) toAdmin(text string) error {
	if !n.settings.NotifyAdmin || n.sender == nil || n.settings.AdminChatID == 0 {
		return nil
	}
	return n.sender.SendMessage(n.settings.AdminChatID, text)
}
