// internal/core/domain/referral/manager.go
package referral

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrNaPaSS/menutrade/internal/events"
	"github.com/MrNaPaSS/menutrade/pkg/logger"
)

// Settings правила реферальной программы (анти-фрод и условия активации)
type Settings struct {
	BotUsername          string
	RequireAccountID     bool // активация требует привязанный ID аккаунта
	RequireDeposit       bool // активация требует подтверждённый депозит
	CheckUniqueAccountID bool // ID аккаунта не может повторяться
	PreventSelfReferral  bool
	OneReferrerOnly      bool // первый реферер навсегда
}

// DefaultSettings возвращает правила по умолчанию
func DefaultSettings(botUsername string) Settings {
	return Settings{
		BotUsername:          botUsername,
		RequireAccountID:     true,
		RequireDeposit:       true,
		CheckUniqueAccountID: true,
		PreventSelfReferral:  true,
		OneReferrerOnly:      true,
	}
}

// Manager реализует бизнес-логику реферальной программы поверх Store.
// Один мьютекс сериализует цепочку "мутация в памяти → сохранение":
// конкурирующих записей в JSON-файл быть не должно.
type Manager struct {
	mu       sync.Mutex
	store    Store
	catalog  *Catalog
	settings Settings
	bus      events.Publisher
	now      func() time.Time
}

// NewManager создает менеджер. bus может быть nil — тогда события не публикуются.
func NewManager(store Store, catalog *Catalog, settings Settings, bus events.Publisher) *Manager {
	return &Manager{
		store:    store,
		catalog:  catalog,
		settings: settings,
		bus:      bus,
		now:      time.Now,
	}
}

// Catalog возвращает каталог бонусов
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}

// ReferralLink возвращает персональную ссылку пользователя
func (m *Manager) ReferralLink(userID string) string {
	return fmt.Sprintf("https://t.me/%s?start=ref_%s", m.settings.BotUsername, userID)
}

// ParseReferralParam извлекает ID реферера из параметра /start.
// Принимается только формат "ref_" + цифры.
func ParseReferralParam(param string) (string, bool) {
	if !strings.HasPrefix(param, "ref_") {
		return "", false
	}
	id := strings.TrimPrefix(param, "ref_")
	if id == "" {
		return "", false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id, true
}

// RegisterUser возвращает запись пользователя, создавая её при первом обращении
func (m *Manager) RegisterUser(userID, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.store.Get(userID)
	if ok {
		// Юзернейм мог смениться
		if username != "" && user.Username != username {
			user.Username = username
			m.store.Put(user)
			return user, m.persist("register_user")
		}
		return user, nil
	}

	user = NewUser(userID, username, m.now())
	m.store.Put(user)
	logger.Referral("регистрация", userID, "")
	return user, m.persist("register_user")
}

// RegisterClick фиксирует переход по реферальной ссылке. Регистрация
// предшествует клику: неизвестный пользователь — ошибка, не создание.
// Повторный клик того же пользователя — no-op. Первый реферер побеждает.
func (m *Manager) RegisterClick(userID, referrerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settings.PreventSelfReferral && userID == referrerID {
		return ErrSelfReferral
	}

	referrer, ok := m.store.Get(referrerID)
	if !ok {
		return ErrUnknownReferrer
	}

	user, ok := m.store.Get(userID)
	if !ok {
		return ErrUnknownUser
	}

	rec := user.ReferralRecord()
	if rec.InvitedBy != nil {
		if *rec.InvitedBy == referrerID {
			// Идемпотентность: клик уже учтён
			return nil
		}
		if m.settings.OneReferrerOnly {
			return ErrAlreadyInvited
		}
	}

	refRec := referrer.ReferralRecord()
	if refRec.HasReferral(userID) {
		return nil
	}

	invitedBy := referrerID
	rec.InvitedBy = &invitedBy
	refRec.Referrals = append(refRec.Referrals, ReferralEntry{
		UserID:    userID,
		Timestamp: m.now(),
	})

	m.store.Put(user)
	m.store.Put(referrer)
	logger.Referral("клик", userID, referrerID)

	events.PublishReferralClick(m.bus, "referral_manager", events.ReferralClickData{
		UserID:     userID,
		Username:   user.Username,
		ReferrerID: referrerID,
	})

	return m.persist("register_click")
}

// SetAccountID привязывает ID аккаунта Pocket Option и пробует активировать
// реферала. Возвращает true если активация произошла этим вызовом.
// Уникальность ID проверяется в момент активации, не здесь.
func (m *Manager) SetAccountID(userID, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.store.Get(userID)
	if !ok {
		return false, ErrUnknownUser
	}

	user.PocketOptionID = &accountID
	m.store.Put(user)
	logger.Referral("привязан ID аккаунта", userID, "")

	activated := m.tryActivate(user)
	return activated, m.persist("set_account_id")
}

// ConfirmDeposit отмечает депозит подтверждённым и пробует активировать реферала
func (m *Manager) ConfirmDeposit(userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.store.Get(userID)
	if !ok {
		return false, ErrUnknownUser
	}

	user.Deposited = true
	m.store.Put(user)
	logger.Referral("депозит подтверждён", userID, "")

	activated := m.tryActivate(user)
	return activated, m.persist("confirm_deposit")
}

// CheckAndActivate проверяет условия активации и активирует реферала.
// Идемпотентна. Неизвестный пользователь — спокойный no-op, не ошибка.
func (m *Manager) CheckAndActivate(userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.store.Get(userID)
	if !ok {
		return false, nil
	}

	activated := m.tryActivate(user)
	if !activated {
		return false, nil
	}
	return true, m.persist("check_and_activate")
}

// tryActivate активирует реферала, если все условия выполнены.
// Вызывается под мьютексом, Save не делает.
func (m *Manager) tryActivate(user *User) bool {
	if user.Referral == nil || user.Referral.InvitedBy == nil {
		return false
	}
	if m.settings.RequireAccountID && user.PocketOptionID == nil {
		return false
	}
	if m.settings.RequireDeposit && !user.Deposited {
		return false
	}

	// Анти-фрод: повторяющийся ID аккаунта молча отказывает в активации,
	// пользователю детали не раскрываются
	if m.settings.CheckUniqueAccountID && user.PocketOptionID != nil {
		for _, other := range m.store.All() {
			if other.ID != user.ID && other.PocketOptionID != nil &&
				*other.PocketOptionID == *user.PocketOptionID {
				logger.Warn("активация %s отклонена: ID аккаунта уже привязан к %s",
					user.ID, other.ID)
				return false
			}
		}
	}

	referrerID := *user.Referral.InvitedBy
	referrer, ok := m.store.Get(referrerID)
	if !ok {
		logger.Warn("реферер %s не найден при активации %s", referrerID, user.ID)
		return false
	}

	refRec := referrer.ReferralRecord()
	if refRec.HasActivated(user.ID) {
		return false
	}

	refRec.ActivatedReferrals = append(refRec.ActivatedReferrals, ReferralEntry{
		UserID:    user.ID,
		Timestamp: m.now(),
	})
	m.store.Put(referrer)

	count := len(refRec.ActivatedReferrals)
	logger.Referral("активация", user.ID, referrerID)

	events.PublishReferralActivated(m.bus, "referral_manager", events.ReferralActivatedData{
		UserID:         user.ID,
		Username:       user.Username,
		ReferrerID:     referrerID,
		ActivatedCount: count,
	})

	// Порог уровня пересечён ровно этой активацией
	if tier, ok := m.catalog.TierByThreshold(count); ok {
		events.PublishTierReached(m.bus, "referral_manager", events.TierReachedData{
			ReferrerID:     referrerID,
			TierID:         tier.ID,
			TierName:       tier.Name,
			ActivatedCount: count,
		})
	}

	return true
}

// Stats возвращает статистику пользователя для вывода в боте.
// Неизвестный пользователь получает нулевую статистику, не ошибку.
func (m *Manager) Stats(userID string) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rec *Record
	if user, ok := m.store.Get(userID); ok {
		rec = user.ReferralRecord()
	} else {
		rec = NewRecord(userID)
	}

	count := len(rec.ActivatedReferrals)

	stats := &Stats{
		Clicks:      len(rec.Referrals),
		Activated:   count,
		Available:   m.catalog.AvailableBonuses(count, rec.BonusesClaimed),
		Claimed:     append([]string{}, rec.BonusesClaimed...),
		ProgressBar: m.catalog.ProgressBar(count),
		Pending:     rec.PendingBonusRequest,
		Link:        m.ReferralLink(userID),
	}

	if rec.TradingViewUsername != nil {
		stats.ExternalHandle = *rec.TradingViewUsername
	}

	if next, remaining, ok := m.catalog.NextTier(count); ok {
		stats.Next = &next
		stats.Remaining = remaining
	}

	return stats, nil
}

// ReferralListEntry реферал с развёрнутыми данными пользователя
type ReferralListEntry struct {
	UserID       string
	Username     string
	Timestamp    time.Time
	RegisteredAt time.Time
	HasAccountID bool
	HasDeposit   bool
	Activated    bool
}

// ReferralList возвращает рефералов пользователя в порядке кликов.
// Удалённые с тех пор пользователи молча пропускаются; неизвестный
// пользователь получает пустой список.
func (m *Manager) ReferralList(userID string) ([]ReferralListEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.store.Get(userID)
	if !ok {
		return []ReferralListEntry{}, nil
	}

	rec := user.ReferralRecord()
	out := make([]ReferralListEntry, 0, len(rec.Referrals))
	for _, entry := range rec.Referrals {
		friend, ok := m.store.Get(entry.UserID)
		if !ok {
			continue
		}
		out = append(out, ReferralListEntry{
			UserID:       entry.UserID,
			Username:     friend.Username,
			Timestamp:    entry.Timestamp,
			RegisteredAt: friend.RegisteredAt,
			HasAccountID: friend.PocketOptionID != nil,
			HasDeposit:   friend.Deposited,
			Activated:    rec.HasActivated(entry.UserID),
		})
	}

	return out, nil
}

// RequestBonus создает заявку на бонус. Непустой externalHandle обновляет
// сохранённый TradingView username. Одновременно может ожидать
// рассмотрения только одна заявка.
func (m *Manager) RequestBonus(userID, tierID, externalHandle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.store.Get(userID)
	if !ok {
		return ErrUnknownUser
	}

	rec := user.ReferralRecord()
	if rec.PendingBonusRequest != nil {
		return ErrRequestAlreadyPending
	}

	tier, ok := m.catalog.TierByID(tierID)
	if !ok {
		return ErrBonusUnavailable
	}

	available := false
	for _, t := range m.catalog.AvailableBonuses(len(rec.ActivatedReferrals), rec.BonusesClaimed) {
		if t.ID == tierID {
			available = true
			break
		}
	}
	if !available {
		return ErrBonusUnavailable
	}

	if externalHandle != "" {
		handle := externalHandle
		rec.TradingViewUsername = &handle
	}

	now := m.now()
	rec.PendingBonusRequest = &PendingRequest{TierID: tierID, RequestedAt: now}
	rec.BonusRequestsHistory = append(rec.BonusRequestsHistory, RequestLogEntry{
		TierID:    tierID,
		Status:    RequestStatusPending,
		Timestamp: now,
	})

	m.store.Put(user)
	logger.Referral("заявка на бонус "+tierID, userID, "")

	data := events.BonusRequestData{
		UserID:   userID,
		Username: user.Username,
		TierID:   tierID,
		TierName: tier.Name,
	}
	if rec.TradingViewUsername != nil {
		data.TradingViewUsername = *rec.TradingViewUsername
	}
	events.PublishBonusRequested(m.bus, "referral_manager", data)

	return m.persist("request_bonus")
}

// resolvePendingHistory переводит ожидающую запись истории в конечный
// статус на месте. Если записи нет (старые данные), добавляет новую.
func resolvePendingHistory(rec *Record, tierID, status, adminID, reason string, now time.Time) {
	for i := len(rec.BonusRequestsHistory) - 1; i >= 0; i-- {
		entry := &rec.BonusRequestsHistory[i]
		if entry.TierID == tierID && entry.Status == RequestStatusPending {
			entry.Status = status
			entry.AdminID = adminID
			entry.Reason = reason
			processed := now
			entry.ProcessedAt = &processed
			return
		}
	}

	processed := now
	rec.BonusRequestsHistory = append(rec.BonusRequestsHistory, RequestLogEntry{
		TierID:      tierID,
		Status:      status,
		AdminID:     adminID,
		Reason:      reason,
		Timestamp:   now,
		ProcessedAt: &processed,
	})
}

// ApproveBonus одобряет ожидающую заявку пользователя от имени adminID.
// Активированные рефералы расходуются: из списка удаляются
// friends_required самых старых. Если их по какой-то причине меньше
// порога, список не трогаем.
func (m *Manager) ApproveBonus(userID, adminID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.store.Get(userID)
	if !ok {
		return ErrUnknownUser
	}

	rec := user.ReferralRecord()
	if rec.PendingBonusRequest == nil {
		return ErrNoPendingRequest
	}

	tierID := rec.PendingBonusRequest.TierID
	tier, ok := m.catalog.TierByID(tierID)
	if !ok {
		return ErrBonusUnavailable
	}

	if len(rec.ActivatedReferrals) >= tier.FriendsRequired {
		rec.ActivatedReferrals = rec.ActivatedReferrals[tier.FriendsRequired:]
	} else {
		logger.Warn("одобрение %s для %s: активаций %d меньше порога %d, список не расходуется",
			tierID, userID, len(rec.ActivatedReferrals), tier.FriendsRequired)
	}

	now := m.now()
	rec.BonusesClaimed = append(rec.BonusesClaimed, tierID)
	rec.PendingBonusRequest = nil
	resolvePendingHistory(rec, tierID, RequestStatusApproved, adminID, "", now)

	bonus := &ActiveBonus{
		TierID:     tierID,
		Name:       tier.Name,
		Days:       tier.RewardDays,
		GrantedAt:  now,
		Mentorship: tier.RewardKind == RewardMentorship,
	}
	if !tier.Unlimited() {
		expires := now.AddDate(0, 0, tier.RewardDays)
		bonus.ExpiresAt = &expires
	}
	rec.ActiveSubscription = bonus

	m.store.Put(user)
	logger.Referral("бонус одобрен "+tierID+" админом "+adminID, userID, "")

	events.PublishBonusApproved(m.bus, "referral_manager", events.BonusDecisionData{
		UserID:     userID,
		Username:   user.Username,
		TierID:     tierID,
		TierName:   tier.Name,
		RewardDays: tier.RewardDays,
		Mentorship: bonus.Mentorship,
	})

	return m.persist("approve_bonus")
}

// RejectBonus отклоняет ожидающую заявку пользователя от имени adminID
func (m *Manager) RejectBonus(userID, adminID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.store.Get(userID)
	if !ok {
		return ErrUnknownUser
	}

	rec := user.ReferralRecord()
	if rec.PendingBonusRequest == nil {
		return ErrNoPendingRequest
	}

	tierID := rec.PendingBonusRequest.TierID
	tierName := tierID
	if tier, ok := m.catalog.TierByID(tierID); ok {
		tierName = tier.Name
	}

	rec.PendingBonusRequest = nil
	resolvePendingHistory(rec, tierID, RequestStatusRejected, adminID, reason, m.now())

	m.store.Put(user)
	logger.Referral("бонус отклонён "+tierID+" админом "+adminID, userID, "")

	events.PublishBonusRejected(m.bus, "referral_manager", events.BonusDecisionData{
		UserID:   userID,
		Username: user.Username,
		TierID:   tierID,
		TierName: tierName,
		Reason:   reason,
	})

	return m.persist("reject_bonus")
}

// PendingRequests возвращает очередь заявок в порядке добавления пользователей
func (m *Manager) PendingRequests() []PendingRequestInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PendingRequestInfo
	for _, user := range m.store.All() {
		if user.Referral == nil || user.Referral.PendingBonusRequest == nil {
			continue
		}
		rec := user.Referral
		req := rec.PendingBonusRequest
		info := PendingRequestInfo{
			UserID:         user.ID,
			Username:       user.Username,
			TierID:         req.TierID,
			RequestedAt:    req.RequestedAt,
			ActivatedCount: len(rec.ActivatedReferrals),
		}
		if tier, ok := m.catalog.TierByID(req.TierID); ok {
			info.TierName = tier.Name
		}
		if rec.TradingViewUsername != nil {
			info.TradingViewUsername = *rec.TradingViewUsername
		}
		out = append(out, info)
	}

	return out
}

// TopReferrers возвращает рейтинг рефереров по числу активаций.
// Сортировка стабильная: при равенстве побеждает более ранний пользователь.
func (m *Manager) TopReferrers(limit int) []TopReferrer {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []TopReferrer
	for _, user := range m.store.All() {
		if user.Referral == nil || len(user.Referral.ActivatedReferrals) == 0 {
			continue
		}
		out = append(out, TopReferrer{
			UserID:    user.ID,
			Username:  user.Username,
			Activated: len(user.Referral.ActivatedReferrals),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Activated > out[j].Activated
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GlobalStats возвращает сводную статистику программы.
// Конверсия = активации / клики × 100, 0 при отсутствии кликов.
func (m *Manager) GlobalStats() GlobalStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := GlobalStats{TotalUsers: m.store.Len()}

	for _, user := range m.store.All() {
		if user.Referral == nil {
			continue
		}
		rec := user.Referral
		if len(rec.Referrals) > 0 {
			stats.Referrers++
		}
		stats.TotalClicks += len(rec.Referrals)
		stats.TotalActivated += len(rec.ActivatedReferrals)
		if rec.PendingBonusRequest != nil {
			stats.PendingRequests++
		}
		stats.BonusesGranted += len(rec.BonusesClaimed)
	}

	if stats.TotalClicks > 0 {
		stats.ConversionRate = float64(stats.TotalActivated) / float64(stats.TotalClicks) * 100
	}

	return stats
}

// persist сохраняет хранилище. Мутация в памяти при ошибке не откатывается:
// хранилище остаётся "грязным" и будет сброшено при следующем Save.
func (m *Manager) persist(op string) error {
	if err := m.store.Save(); err != nil {
		logger.Error("не удалось сохранить пользователей (%s): %v", op, err)
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}
