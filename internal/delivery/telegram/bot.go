// internal/delivery/telegram/bot.go
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrNaPaSS/menutrade/internal/core/domain/referral"
	"github.com/MrNaPaSS/menutrade/pkg/logger"
)

// Bot - обработчик команд реферального бота поверх long polling
type Bot struct {
	client         *Client
	manager        *referral.Manager
	states         StateStore
	adminChatID    int64
	supportContact string
	pollTimeout    int
	lastUpdateID   int64
	stopChan       chan struct{}
	doneChan       chan struct{}
}

// NewBot создает бота
func NewBot(client *Client, manager *referral.Manager, states StateStore, adminChatID int64, supportContact string, pollTimeout int) *Bot {
	return &Bot{
		client:         client,
		manager:        manager,
		states:         states,
		adminChatID:    adminChatID,
		supportContact: supportContact,
		pollTimeout:    pollTimeout,
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
	}
}

// Start запускает цикл опроса в отдельной горутине
func (b *Bot) Start() error {
	if err := b.client.GetMe(); err != nil {
		return err
	}

	go b.pollLoop()
	logger.Info("🤖 Бот запущен, polling с таймаутом %d сек", b.pollTimeout)
	return nil
}

// Stop останавливает цикл опроса и дожидается его завершения
func (b *Bot) Stop() {
	close(b.stopChan)
	<-b.doneChan
	logger.Info("🛑 Бот остановлен")
}

func (b *Bot) pollLoop() {
	defer close(b.doneChan)

	for {
		select {
		case <-b.stopChan:
			return
		default:
		}

		updates, err := b.client.GetUpdates(b.lastUpdateID, b.pollTimeout)
		if err != nil {
			logger.Error("❌ Ошибка получения обновлений: %v", err)
			select {
			case <-time.After(3 * time.Second):
			case <-b.stopChan:
				return
			}
			continue
		}

		for _, update := range updates {
			b.processUpdate(update)
			if update.UpdateID >= b.lastUpdateID {
				b.lastUpdateID = update.UpdateID + 1
			}
		}
	}
}

func (b *Bot) processUpdate(update Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}

	// ID в домене строковые, нормализация происходит здесь
	userID := strconv.FormatInt(msg.From.ID, 10)
	username := msg.From.Username
	if username == "" {
		username = msg.From.FirstName
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	ctx := context.Background()

	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, msg, userID, username, text)
		return
	}

	// Не команда: возможно, бот ждёт ввода
	state := dialogState(ctx, b.states, userID)
	if state == StateAwaitingAccountID {
		b.handleAccountIDInput(ctx, msg, userID, text)
		return
	}
	if tierID, ok := TradingViewTier(state); ok {
		b.submitBonusRequest(ctx, userID, tierID, text, msg)
		return
	}

	b.reply(msg, "Не понимаю. Команды: /link /stats /referrals /bonus /setid")
}

func (b *Bot) handleCommand(ctx context.Context, msg *Message, userID, username, text string) {
	parts := strings.Fields(text)
	command := parts[0]
	args := parts[1:]

	// Команда может прийти как /stats@botname
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	switch command {
	case "/start":
		b.handleStart(userID, username, args, msg)
	case "/link":
		b.requireUser(userID, username)
		b.reply(msg, msgLink(b.manager.ReferralLink(userID)))
	case "/stats":
		b.handleStats(userID, username, msg)
	case "/referrals":
		b.handleReferrals(userID, username, msg)
	case "/bonus":
		b.handleBonus(ctx, userID, username, args, msg)
	case "/setid":
		b.handleSetID(ctx, userID, username, args, msg)
	case "/help":
		b.reply(msg, msgHelp(b.supportContact))

	// Админские команды
	case "/pending":
		b.admin(msg, func() { b.reply(msg, msgPending(b.manager.PendingRequests())) })
	case "/approve":
		b.admin(msg, func() { b.handleApprove(userID, args, msg) })
	case "/reject":
		b.admin(msg, func() { b.handleReject(userID, args, msg) })
	case "/confirm_deposit":
		b.admin(msg, func() { b.handleConfirmDeposit(args, msg) })
	case "/top":
		b.admin(msg, func() { b.reply(msg, msgTop(b.manager.TopReferrers(10))) })
	case "/global":
		b.admin(msg, func() { b.reply(msg, msgGlobal(b.manager.GlobalStats())) })

	default:
		b.reply(msg, "Неизвестная команда. /help")
	}
}

// admin выполняет fn только из админского чата
func (b *Bot) admin(msg *Message, fn func()) {
	if b.adminChatID == 0 || msg.Chat.ID != b.adminChatID {
		b.reply(msg, "Команда доступна только администратору")
		return
	}
	fn()
}

// requireUser регистрирует пользователя при первом касании
func (b *Bot) requireUser(userID, username string) {
	if _, err := b.manager.RegisterUser(userID, username); err != nil {
		logger.Error("регистрация %s: %v", userID, err)
	}
}

func (b *Bot) handleStart(userID, username string, args []string, msg *Message) {
	b.requireUser(userID, username)

	if len(args) > 0 {
		if referrerID, ok := referral.ParseReferralParam(args[0]); ok {
			err := b.manager.RegisterClick(userID, referrerID)
			switch {
			case err == nil:
				b.reply(msg, msgWelcomeReferred(b.supportContact))
				return
			case errors.Is(err, referral.ErrSelfReferral):
				b.reply(msg, "По своей ссылке перейти нельзя 🙂")
			case errors.Is(err, referral.ErrAlreadyInvited):
				// Реферер уже закреплён, просто приветствуем
			case errors.Is(err, referral.ErrUnknownReferrer):
				logger.Warn("клик по ссылке несуществующего реферера %s", args[0])
			default:
				logger.Error("клик %s: %v", userID, err)
			}
		}
	}

	b.reply(msg, msgWelcome(b.supportContact))
}

func (b *Bot) handleStats(userID, username string, msg *Message) {
	b.requireUser(userID, username)

	stats, err := b.manager.Stats(userID)
	if err != nil {
		b.reply(msg, "Не удалось получить статистику")
		return
	}
	b.reply(msg, msgStats(stats, b.manager.Catalog()))
}

func (b *Bot) handleReferrals(userID, username string, msg *Message) {
	b.requireUser(userID, username)

	list, err := b.manager.ReferralList(userID)
	if err != nil {
		b.reply(msg, "Не удалось получить список рефералов")
		return
	}
	b.reply(msg, msgReferralList(list))
}

func (b *Bot) handleBonus(ctx context.Context, userID, username string, args []string, msg *Message) {
	b.requireUser(userID, username)

	if len(args) == 0 {
		stats, err := b.manager.Stats(userID)
		if err != nil {
			b.reply(msg, "Не удалось получить список бонусов")
			return
		}
		b.reply(msg, msgAvailableBonuses(stats))
		return
	}

	tierID := args[0]

	// /bonus <id> <tv_username> — заявка одним сообщением
	if len(args) > 1 {
		b.submitBonusRequest(ctx, userID, tierID, args[1], msg)
		return
	}

	// Доступность проверяем до вопроса про TradingView
	stats, err := b.manager.Stats(userID)
	if err != nil {
		b.reply(msg, "Не удалось отправить заявку, попробуйте позже")
		return
	}
	if stats.Pending != nil {
		b.reply(msg, "У вас уже есть заявка на рассмотрении")
		return
	}
	available := false
	for _, tier := range stats.Available {
		if tier.ID == tierID {
			available = true
			break
		}
	}
	if !available {
		b.reply(msg, "Этот бонус сейчас недоступен. /stats покажет ваш прогресс")
		return
	}

	if err := b.states.SetDialogState(ctx, userID, StateAwaitingTradingView(tierID)); err != nil {
		logger.Warn("не удалось сохранить состояние диалога %s: %v", userID, err)
	}
	b.reply(msg, "Пришлите ваш TradingView username — на него будет выдан доступ")
}

func (b *Bot) submitBonusRequest(ctx context.Context, userID, tierID, handle string, msg *Message) {
	handle = strings.TrimSpace(strings.TrimPrefix(handle, "@"))

	err := b.manager.RequestBonus(userID, tierID, handle)
	switch {
	case err == nil:
		if err := b.states.ClearDialogState(ctx, userID); err != nil {
			logger.Warn("не удалось сбросить состояние диалога %s: %v", userID, err)
		}
		b.reply(msg, "📨 Заявка отправлена! Администратор рассмотрит её в ближайшее время.")
	case errors.Is(err, referral.ErrRequestAlreadyPending):
		b.reply(msg, "У вас уже есть заявка на рассмотрении")
	case errors.Is(err, referral.ErrBonusUnavailable):
		b.reply(msg, "Этот бонус сейчас недоступен. /stats покажет ваш прогресс")
	default:
		logger.Error("заявка на бонус %s/%s: %v", userID, tierID, err)
		b.reply(msg, "Не удалось отправить заявку, попробуйте позже")
	}
}

func (b *Bot) handleSetID(ctx context.Context, userID, username string, args []string, msg *Message) {
	b.requireUser(userID, username)

	if len(args) == 0 {
		if err := b.states.SetDialogState(ctx, userID, StateAwaitingAccountID); err != nil {
			logger.Warn("не удалось сохранить состояние диалога %s: %v", userID, err)
		}
		b.reply(msg, "Пришлите ID вашего аккаунта Pocket Option (только цифры)")
		return
	}

	b.submitAccountID(ctx, userID, args[0], msg)
}

func (b *Bot) handleAccountIDInput(ctx context.Context, msg *Message, userID, text string) {
	b.submitAccountID(ctx, userID, text, msg)
}

func (b *Bot) submitAccountID(ctx context.Context, userID, accountID string, msg *Message) {
	accountID = strings.TrimSpace(accountID)
	for _, r := range accountID {
		if r < '0' || r > '9' {
			b.reply(msg, "ID аккаунта должен состоять только из цифр")
			return
		}
	}

	activated, err := b.manager.SetAccountID(userID, accountID)
	switch {
	case err == nil:
		if err := b.states.ClearDialogState(ctx, userID); err != nil {
			logger.Warn("не удалось сбросить состояние диалога %s: %v", userID, err)
		}
		if activated {
			b.reply(msg, "✅ ID сохранён, все условия выполнены — вы засчитаны как реферал!")
		} else {
			b.reply(msg, "✅ ID сохранён")
		}
	default:
		logger.Error("привязка ID %s: %v", userID, err)
		b.reply(msg, "Не удалось сохранить ID, попробуйте позже")
	}
}

func (b *Bot) handleApprove(adminID string, args []string, msg *Message) {
	if len(args) == 0 {
		b.reply(msg, "Использование: /approve <user_id>")
		return
	}

	err := b.manager.ApproveBonus(args[0], adminID)
	switch {
	case err == nil:
		b.reply(msg, "✅ Заявка одобрена")
	case errors.Is(err, referral.ErrNoPendingRequest):
		b.reply(msg, "У пользователя нет ожидающей заявки")
	case errors.Is(err, referral.ErrUnknownUser):
		b.reply(msg, "Пользователь не найден")
	default:
		b.reply(msg, "Ошибка: "+err.Error())
	}
}

func (b *Bot) handleReject(adminID string, args []string, msg *Message) {
	if len(args) == 0 {
		b.reply(msg, "Использование: /reject <user_id> [причина]")
		return
	}

	reason := strings.Join(args[1:], " ")
	err := b.manager.RejectBonus(args[0], adminID, reason)
	switch {
	case err == nil:
		b.reply(msg, "🚫 Заявка отклонена")
	case errors.Is(err, referral.ErrNoPendingRequest):
		b.reply(msg, "У пользователя нет ожидающей заявки")
	case errors.Is(err, referral.ErrUnknownUser):
		b.reply(msg, "Пользователь не найден")
	default:
		b.reply(msg, "Ошибка: "+err.Error())
	}
}

func (b *Bot) handleConfirmDeposit(args []string, msg *Message) {
	if len(args) == 0 {
		b.reply(msg, "Использование: /confirm_deposit <user_id>")
		return
	}

	activated, err := b.manager.ConfirmDeposit(args[0])
	switch {
	case err == nil && activated:
		b.reply(msg, "✅ Депозит подтверждён, реферал активирован")
	case err == nil:
		b.reply(msg, "✅ Депозит подтверждён")
	case errors.Is(err, referral.ErrUnknownUser):
		b.reply(msg, "Пользователь не найден")
	default:
		b.reply(msg, "Ошибка: "+err.Error())
	}
}

func (b *Bot) reply(msg *Message, text string) {
	if err := b.client.SendMessage(msg.Chat.ID, text); err != nil {
		logger.Error("❌ Не удалось отправить сообщение в чат %d: %v", msg.Chat.ID, err)
	}
}
