// internal/delivery/telegram/messages.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/MrNaPaSS/menutrade/internal/core/domain/referral"
)

func msgWelcome(supportContact string) string {
	return "👋 Добро пожаловать в бот «Здравый Трейдер»!\n\n" +
		"Приглашайте друзей и получайте бонусы:\n" +
		"/link — ваша реферальная ссылка\n" +
		"/stats — прогресс и доступные бонусы\n" +
		"/help — все команды\n\n" +
		"Вопросы: " + supportContact
}

func msgWelcomeReferred(supportContact string) string {
	return "👋 Добро пожаловать! Вы пришли по приглашению друга.\n\n" +
		"Чтобы засчитаться как реферал:\n" +
		"1️⃣ Привяжите ID аккаунта Pocket Option: /setid\n" +
		"2️⃣ Внесите депозит и дождитесь подтверждения\n\n" +
		"Вопросы: " + supportContact
}

func msgHelp(supportContact string) string {
	return "📖 Команды:\n" +
		"/link — реферальная ссылка\n" +
		"/stats — статистика и прогресс\n" +
		"/referrals — список приглашённых\n" +
		"/bonus — доступные бонусы, /bonus <id> — заявка\n" +
		"/setid — привязать ID аккаунта Pocket Option\n\n" +
		"Поддержка: " + supportContact
}

func msgLink(link string) string {
	return "🔗 Ваша реферальная ссылка:\n" + link +
		"\n\nОтправьте её друзьям — каждый активированный реферал приближает бонус!"
}

func msgStats(stats *referral.Stats, catalog *referral.Catalog) string {
	var sb strings.Builder

	sb.WriteString("📊 <b>Ваша статистика</b>\n\n")
	fmt.Fprintf(&sb, "Переходов по ссылке: %d\n", stats.Clicks)
	fmt.Fprintf(&sb, "Активных рефералов: %d\n\n", stats.Activated)
	fmt.Fprintf(&sb, "Прогресс: %s\n", stats.ProgressBar)

	if stats.Next != nil {
		fmt.Fprintf(&sb, "До «%s» осталось друзей: %d\n", stats.Next.Name, stats.Remaining)
	} else {
		sb.WriteString("🏆 Достигнут высший уровень!\n")
	}

	if len(stats.Available) > 0 {
		sb.WriteString("\n🎁 <b>Доступно для заявки:</b>\n")
		for _, tier := range stats.Available {
			fmt.Fprintf(&sb, "• %s — /bonus %s\n", tier.Name, tier.ID)
		}
	}

	if stats.Pending != nil {
		tierName := stats.Pending.TierID
		if tier, ok := catalog.TierByID(stats.Pending.TierID); ok {
			tierName = tier.Name
		}
		fmt.Fprintf(&sb, "\n⏳ Заявка на «%s» на рассмотрении\n", tierName)
	}

	if stats.ExternalHandle != "" {
		fmt.Fprintf(&sb, "\nTradingView: %s\n", stats.ExternalHandle)
	}

	sb.WriteString("\n🔗 " + stats.Link)
	return sb.String()
}

func msgAvailableBonuses(stats *referral.Stats) string {
	if len(stats.Available) == 0 {
		return "Пока нет доступных бонусов.\n" + stats.ProgressBar +
			"\n\nПриглашайте друзей: " + stats.Link
	}

	var sb strings.Builder
	sb.WriteString("🎁 <b>Доступные бонусы:</b>\n\n")
	for _, tier := range stats.Available {
		fmt.Fprintf(&sb, "• <b>%s</b>\n  %s\n  Заявка: /bonus %s\n\n", tier.Name, tier.Description, tier.ID)
	}
	return sb.String()
}

func msgReferralList(list []referral.ReferralListEntry) string {
	if len(list) == 0 {
		return "У вас пока нет рефералов. /link — поделитесь ссылкой!"
	}

	var sb strings.Builder
	sb.WriteString("👥 <b>Ваши рефералы:</b>\n\n")
	for i, entry := range list {
		name := entry.Username
		if name == "" {
			name = entry.UserID
		}
		status := "⏳ ожидает активации"
		if entry.Activated {
			status = "✅ активирован"
		}
		fmt.Fprintf(&sb, "%d. %s — %s (с %s)\n",
			i+1, name, status, entry.RegisteredAt.Format("02.01.2006"))
	}
	return sb.String()
}

func msgPending(requests []referral.PendingRequestInfo) string {
	if len(requests) == 0 {
		return "Очередь заявок пуста"
	}

	var sb strings.Builder
	sb.WriteString("📨 <b>Заявки на бонусы:</b>\n\n")
	for _, req := range requests {
		name := req.Username
		if name == "" {
			name = req.UserID
		}
		fmt.Fprintf(&sb, "• %s (id %s)\n  %s, %s\n  Активаций: %d\n",
			name, req.UserID, req.TierName,
			req.RequestedAt.Format("02.01.2006 15:04"),
			req.ActivatedCount)
		if req.TradingViewUsername != "" {
			fmt.Fprintf(&sb, "  TradingView: %s\n", req.TradingViewUsername)
		}
		fmt.Fprintf(&sb, "  /approve %s | /reject %s\n\n", req.UserID, req.UserID)
	}
	return sb.String()
}

func msgTop(top []referral.TopReferrer) string {
	if len(top) == 0 {
		return "Активных рефереров пока нет"
	}

	var sb strings.Builder
	sb.WriteString("🏆 <b>Топ рефереров:</b>\n\n")
	medals := []string{"🥇", "🥈", "🥉"}
	for i, entry := range top {
		prefix := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			prefix = medals[i]
		}
		name := entry.Username
		if name == "" {
			name = entry.UserID
		}
		fmt.Fprintf(&sb, "%s %s — %d\n", prefix, name, entry.Activated)
	}
	return sb.String()
}

func msgGlobal(stats referral.GlobalStats) string {
	var sb strings.Builder
	sb.WriteString("🌍 <b>Статистика программы:</b>\n\n")
	fmt.Fprintf(&sb, "Пользователей: %d\n", stats.TotalUsers)
	fmt.Fprintf(&sb, "Рефереров: %d\n", stats.Referrers)
	fmt.Fprintf(&sb, "Переходов: %d\n", stats.TotalClicks)
	fmt.Fprintf(&sb, "Активаций: %d\n", stats.TotalActivated)
	fmt.Fprintf(&sb, "Конверсия: %.1f%%\n", stats.ConversionRate)
	fmt.Fprintf(&sb, "Заявок в очереди: %d\n", stats.PendingRequests)
	fmt.Fprintf(&sb, "Бонусов выдано: %d\n", stats.BonusesGranted)
	return sb.String()
}
