// internal/core/domain/referral/manager_test.go
package referral

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memStore - хранилище в памяти для тестов менеджера
type memStore struct {
	users   map[string]*User
	order   []string
	saveErr error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*User)}
}

func (s *memStore) Get(id string) (*User, bool) {
	u, ok := s.users[id]
	return u, ok
}

func (s *memStore) Put(u *User) {
	if _, exists := s.users[u.ID]; !exists {
		s.order = append(s.order, u.ID)
	}
	s.users[u.ID] = u
}

func (s *memStore) Delete(id string) {
	delete(s.users, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *memStore) All() []*User {
	out := make([]*User, 0, len(s.order))
	for _, id := range s.order {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

func (s *memStore) Len() int { return len(s.users) }

func (s *memStore) Save() error {
	s.saves++
	return s.saveErr
}

func (s *memStore) Load() error { return nil }

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestManager() (*Manager, *memStore) {
	store := newMemStore()
	m := NewManager(store, DefaultCatalog(), DefaultSettings("testbot"), nil)
	m.now = func() time.Time { return testTime }
	return m, store
}

// activateFriends приводит count друзей реферера в активированное состояние
func activateFriends(t *testing.T, m *Manager, referrerID string, ids []string) {
	t.Helper()
	for _, id := range ids {
		_, err := m.RegisterUser(id, "friend_"+id)
		require.NoError(t, err)
		require.NoError(t, m.RegisterClick(id, referrerID))
		_, err = m.SetAccountID(id, "9"+id)
		require.NoError(t, err)
		activated, err := m.ConfirmDeposit(id)
		require.NoError(t, err)
		require.True(t, activated)
	}
}

func TestParseReferralParam(t *testing.T) {
	require := require.New(t)

	id, ok := ParseReferralParam("ref_123456")
	require.True(ok)
	require.Equal("123456", id)

	_, ok = ParseReferralParam("ref_")
	require.False(ok)

	_, ok = ParseReferralParam("ref_12a34")
	require.False(ok)

	_, ok = ParseReferralParam("123456")
	require.False(ok)

	_, ok = ParseReferralParam("REF_123")
	require.False(ok)

	_, ok = ParseReferralParam("")
	require.False(ok)
}

func TestReferralLink(t *testing.T) {
	m, _ := newTestManager()
	require.Equal(t, "https://t.me/testbot?start=ref_100", m.ReferralLink("100"))
}

func TestRegisterClick(t *testing.T) {
	require := require.New(t)
	m, store := newTestManager()

	_, err := m.RegisterUser("100", "referrer")
	require.NoError(err)

	// Регистрация предшествует клику: незарегистрированный
	// пользователь не создаётся молча
	require.ErrorIs(m.RegisterClick("200", "100"), ErrUnknownUser)
	_, ok := store.Get("200")
	require.False(ok)

	_, err = m.RegisterUser("200", "friend")
	require.NoError(err)

	// Реферер должен существовать
	require.ErrorIs(m.RegisterClick("200", "999"), ErrUnknownReferrer)

	// Самоприглашение запрещено
	require.ErrorIs(m.RegisterClick("100", "100"), ErrSelfReferral)

	require.NoError(m.RegisterClick("200", "100"))

	referrer, _ := store.Get("100")
	require.Len(referrer.Referral.Referrals, 1)
	require.Equal("200", referrer.Referral.Referrals[0].UserID)

	user, _ := store.Get("200")
	require.NotNil(user.Referral.InvitedBy)
	require.Equal("100", *user.Referral.InvitedBy)

	// Повторный клик идемпотентен
	require.NoError(m.RegisterClick("200", "100"))
	referrer, _ = store.Get("100")
	require.Len(referrer.Referral.Referrals, 1)

	// Первый реферер побеждает
	_, err = m.RegisterUser("300", "other")
	require.NoError(err)
	require.ErrorIs(m.RegisterClick("200", "300"), ErrAlreadyInvited)
}

func TestActivationFlow(t *testing.T) {
	require := require.New(t)
	m, store := newTestManager()

	_, err := m.RegisterUser("100", "referrer")
	require.NoError(err)
	_, err = m.RegisterUser("200", "friend")
	require.NoError(err)
	require.NoError(m.RegisterClick("200", "100"))

	// Условия не выполнены: только клик
	activated, err := m.CheckAndActivate("200")
	require.NoError(err)
	require.False(activated)

	// Только ID аккаунта: депозита ещё нет
	activated, err = m.SetAccountID("200", "777001")
	require.NoError(err)
	require.False(activated)

	// Депозит подтверждён: активация
	activated, err = m.ConfirmDeposit("200")
	require.NoError(err)
	require.True(activated)

	referrer, _ := store.Get("100")
	require.Len(referrer.Referral.ActivatedReferrals, 1)

	// Повторная проверка не дублирует активацию
	activated, err = m.CheckAndActivate("200")
	require.NoError(err)
	require.False(activated)

	referrer, _ = store.Get("100")
	require.Len(referrer.Referral.ActivatedReferrals, 1)

	// Неизвестный пользователь: спокойный no-op
	activated, err = m.CheckAndActivate("404")
	require.NoError(err)
	require.False(activated)
}

func TestDuplicateAccountIDRefusesActivation(t *testing.T) {
	require := require.New(t)
	m, store := newTestManager()

	_, err := m.RegisterUser("100", "referrer")
	require.NoError(err)
	activateFriends(t, m, "100", []string{"201"})

	// Второй друг привязывает уже занятый ID: привязка проходит,
	// активация молча отклоняется
	_, err = m.RegisterUser("202", "friend_202")
	require.NoError(err)
	require.NoError(m.RegisterClick("202", "100"))
	_, err = m.SetAccountID("202", "9201")
	require.NoError(err)

	activated, err := m.ConfirmDeposit("202")
	require.NoError(err)
	require.False(activated)

	referrer, _ := store.Get("100")
	require.Len(referrer.Referral.ActivatedReferrals, 1)
	require.False(referrer.Referral.HasActivated("202"))

	// Смена на уникальный ID разблокирует активацию
	activated, err = m.SetAccountID("202", "9777")
	require.NoError(err)
	require.True(activated)

	// Неизвестному пользователю ID не привязывается
	_, err = m.SetAccountID("999", "1")
	require.ErrorIs(err, ErrUnknownUser)
}

func TestRequestBonus(t *testing.T) {
	require := require.New(t)
	m, store := newTestManager()

	_, err := m.RegisterUser("100", "referrer")
	require.NoError(err)

	// Порог не достигнут
	require.ErrorIs(m.RequestBonus("100", "level_1", ""), ErrBonusUnavailable)

	activateFriends(t, m, "100", []string{"201", "202"})

	require.ErrorIs(m.RequestBonus("100", "no_such_tier", ""), ErrBonusUnavailable)
	require.NoError(m.RequestBonus("100", "level_1", "tv_alice"))

	user, _ := store.Get("100")
	rec := user.Referral
	require.NotNil(rec.PendingBonusRequest)
	require.Equal("level_1", rec.PendingBonusRequest.TierID)
	require.Len(rec.BonusRequestsHistory, 1)
	require.Equal(RequestStatusPending, rec.BonusRequestsHistory[0].Status)

	// TradingView username сохранён вместе с заявкой
	require.NotNil(rec.TradingViewUsername)
	require.Equal("tv_alice", *rec.TradingViewUsername)

	// Вторая заявка при ожидающей первой
	require.ErrorIs(m.RequestBonus("100", "level_1", ""), ErrRequestAlreadyPending)

	require.ErrorIs(m.RequestBonus("404", "level_1", ""), ErrUnknownUser)
}

func TestApproveBonusConsumesOldest(t *testing.T) {
	require := require.New(t)
	m, store := newTestManager()

	_, err := m.RegisterUser("100", "referrer")
	require.NoError(err)
	activateFriends(t, m, "100", []string{"201", "202", "203"})

	require.NoError(m.RequestBonus("100", "level_1", ""))
	require.NoError(m.ApproveBonus("100", "1"))

	user, _ := store.Get("100")
	rec := user.Referral

	// Израсходованы два самых старых, третий остался
	require.Len(rec.ActivatedReferrals, 1)
	require.Equal("203", rec.ActivatedReferrals[0].UserID)

	require.Equal([]string{"level_1"}, rec.BonusesClaimed)
	require.Nil(rec.PendingBonusRequest)

	// Запись истории переведена в approved на месте, не задвоена
	require.Len(rec.BonusRequestsHistory, 1)
	entry := rec.BonusRequestsHistory[0]
	require.Equal(RequestStatusApproved, entry.Status)
	require.Equal("1", entry.AdminID)
	require.NotNil(entry.ProcessedAt)
	require.Equal(testTime, *entry.ProcessedAt)

	require.NotNil(rec.ActiveSubscription)
	require.Equal("level_1", rec.ActiveSubscription.TierID)
	require.Equal("Неделя подписки", rec.ActiveSubscription.Name)
	require.Equal(7, rec.ActiveSubscription.Days)
	require.False(rec.ActiveSubscription.Mentorship)
	require.NotNil(rec.ActiveSubscription.ExpiresAt)
	require.Equal(testTime.AddDate(0, 0, 7), *rec.ActiveSubscription.ExpiresAt)
	require.True(rec.ActiveSubscription.Active(testTime))
	require.False(rec.ActiveSubscription.Active(testTime.AddDate(0, 0, 8)))

	// Повторное одобрение без заявки
	require.ErrorIs(m.ApproveBonus("100", "1"), ErrNoPendingRequest)
}

func TestApproveBonusClampKeepsList(t *testing.T) {
	require := require.New(t)
	m, store := newTestManager()

	_, err := m.RegisterUser("100", "referrer")
	require.NoError(err)

	// Заявка есть, но активаций меньше порога: список не расходуется
	user, _ := store.Get("100")
	rec := user.ReferralRecord()
	rec.ActivatedReferrals = []ReferralEntry{{UserID: "201", Timestamp: testTime}}
	rec.PendingBonusRequest = &PendingRequest{TierID: "level_1", RequestedAt: testTime}

	require.NoError(m.ApproveBonus("100", "1"))

	user, _ = store.Get("100")
	require.Len(user.Referral.ActivatedReferrals, 1)
	require.Equal([]string{"level_1"}, user.Referral.BonusesClaimed)
}

func TestRejectBonus(t *testing.T) {
	require := require.New(t)
	m, store := newTestManager()

	_, err := m.RegisterUser("100", "referrer")
	require.NoError(err)

	require.ErrorIs(m.RejectBonus("100", "1", "причина"), ErrNoPendingRequest)

	activateFriends(t, m, "100", []string{"201", "202"})
	require.NoError(m.RequestBonus("100", "level_1", ""))
	require.NoError(m.RejectBonus("100", "1", "не выполнены условия"))

	user, _ := store.Get("100")
	rec := user.Referral
	require.Nil(rec.PendingBonusRequest)

	// Активации не расходуются при отказе
	require.Len(rec.ActivatedReferrals, 2)
	require.Empty(rec.BonusesClaimed)

	// Запись истории переведена в rejected на месте
	require.Len(rec.BonusRequestsHistory, 1)
	entry := rec.BonusRequestsHistory[0]
	require.Equal(RequestStatusRejected, entry.Status)
	require.Equal("1", entry.AdminID)
	require.Equal("не выполнены условия", entry.Reason)
	require.NotNil(entry.ProcessedAt)

	// После отказа заявку можно подать снова
	require.NoError(m.RequestBonus("100", "level_1", ""))
	require.Len(user.Referral.BonusRequestsHistory, 2)
}

func TestRatchetAfterApprove(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager()

	_, err := m.RegisterUser("100", "referrer")
	require.NoError(err)
	activateFriends(t, m, "100", []string{"201", "202", "203", "204", "205"})

	// Забираем сразу level_2
	require.NoError(m.RequestBonus("100", "level_2", ""))
	require.NoError(m.ApproveBonus("100", "1"))

	// level_1 теперь недоступен навсегда, даже при достаточном счёте
	activateFriends(t, m, "100", []string{"206", "207"})
	require.ErrorIs(m.RequestBonus("100", "level_1", ""), ErrBonusUnavailable)
}

func TestPendingRequests(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager()

	_, err := m.RegisterUser("100", "alice")
	require.NoError(err)
	_, err = m.RegisterUser("500", "bob")
	require.NoError(err)

	require.Empty(m.PendingRequests())

	activateFriends(t, m, "100", []string{"201", "202"})
	activateFriends(t, m, "500", []string{"601", "602"})

	require.NoError(m.RequestBonus("500", "level_1", "tv_bob"))
	require.NoError(m.RequestBonus("100", "level_1", ""))

	pending := m.PendingRequests()
	require.Len(pending, 2)
	// Порядок добавления пользователей, не порядок заявок
	require.Equal("100", pending[0].UserID)
	require.Equal("alice", pending[0].Username)
	require.Equal("Неделя подписки", pending[0].TierName)
	require.Equal(2, pending[0].ActivatedCount)
	require.Empty(pending[0].TradingViewUsername)
	require.Equal("500", pending[1].UserID)
	require.Equal("tv_bob", pending[1].TradingViewUsername)
}

func TestTopReferrers(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager()

	_, err := m.RegisterUser("100", "alice")
	require.NoError(err)
	_, err = m.RegisterUser("500", "bob")
	require.NoError(err)
	_, err = m.RegisterUser("900", "carol")
	require.NoError(err)

	activateFriends(t, m, "100", []string{"201", "202"})
	activateFriends(t, m, "500", []string{"601", "602", "603"})
	activateFriends(t, m, "900", []string{"701", "702"})

	top := m.TopReferrers(0)
	require.Len(top, 3)
	require.Equal("bob", top[0].Username)
	require.Equal(3, top[0].Activated)
	// Стабильность: при равенстве более ранний пользователь выше
	require.Equal("alice", top[1].Username)
	require.Equal("carol", top[2].Username)

	top = m.TopReferrers(1)
	require.Len(top, 1)
	require.Equal("bob", top[0].Username)
}

func TestGlobalStats(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager()

	// Нет кликов: конверсия 0, деления на ноль нет
	stats := m.GlobalStats()
	require.Zero(stats.ConversionRate)

	_, err := m.RegisterUser("100", "alice")
	require.NoError(err)
	activateFriends(t, m, "100", []string{"201", "202"})
	_, err = m.RegisterUser("203", "friend_203")
	require.NoError(err)
	require.NoError(m.RegisterClick("203", "100"))
	require.NoError(m.RequestBonus("100", "level_1", ""))

	stats = m.GlobalStats()
	require.Equal(4, stats.TotalUsers)
	require.Equal(1, stats.Referrers)
	require.Equal(3, stats.TotalClicks)
	require.Equal(2, stats.TotalActivated)
	// Конверсия в процентах
	require.InDelta(200.0/3.0, stats.ConversionRate, 1e-9)
	require.Equal(1, stats.PendingRequests)
	require.Zero(stats.BonusesGranted)
}

func TestUserStats(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager()

	_, err := m.RegisterUser("100", "alice")
	require.NoError(err)
	activateFriends(t, m, "100", []string{"201", "202"})
	_, err = m.RegisterUser("203", "friend_203")
	require.NoError(err)
	require.NoError(m.RegisterClick("203", "100"))
	require.NoError(m.RequestBonus("100", "level_1", "tv_alice"))

	stats, err := m.Stats("100")
	require.NoError(err)
	require.Equal(3, stats.Clicks)
	require.Equal(2, stats.Activated)
	require.Len(stats.Available, 1)
	require.Equal("level_1", stats.Available[0].ID)
	require.NotNil(stats.Next)
	require.Equal("level_2", stats.Next.ID)
	require.Equal(3, stats.Remaining)
	require.Equal("[▓▓░░░] 2/5", stats.ProgressBar)
	require.Equal("tv_alice", stats.ExternalHandle)
	require.NotNil(stats.Pending)
	require.Equal("https://t.me/testbot?start=ref_100", stats.Link)
}

func TestUserStatsUnknownUserZeroed(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager()

	// Неизвестный пользователь получает нулевую статистику, не ошибку
	stats, err := m.Stats("404")
	require.NoError(err)
	require.Zero(stats.Clicks)
	require.Zero(stats.Activated)
	require.Empty(stats.Available)
	require.Empty(stats.Claimed)
	require.Nil(stats.Pending)
	require.Empty(stats.ExternalHandle)
	require.Equal("[░░] 0/2", stats.ProgressBar)
	require.Equal("https://t.me/testbot?start=ref_404", stats.Link)
}

func TestReferralList(t *testing.T) {
	require := require.New(t)
	m, store := newTestManager()

	_, err := m.RegisterUser("100", "alice")
	require.NoError(err)
	activateFriends(t, m, "100", []string{"201"})
	_, err = m.RegisterUser("202", "friend_202")
	require.NoError(err)
	require.NoError(m.RegisterClick("202", "100"))

	list, err := m.ReferralList("100")
	require.NoError(err)
	require.Len(list, 2)
	require.Equal("201", list[0].UserID)
	require.Equal("friend_201", list[0].Username)
	require.True(list[0].Activated)
	require.True(list[0].HasAccountID)
	require.True(list[0].HasDeposit)
	require.Equal(testTime, list[0].RegisteredAt)
	require.Equal("202", list[1].UserID)
	require.False(list[1].Activated)
	require.False(list[1].HasAccountID)
	require.False(list[1].HasDeposit)

	// Удалённый пользователь молча пропадает из списка
	store.Delete("202")
	list, err = m.ReferralList("100")
	require.NoError(err)
	require.Len(list, 1)
	require.Equal("201", list[0].UserID)

	// Неизвестный пользователь: пустой список, не ошибка
	list, err = m.ReferralList("404")
	require.NoError(err)
	require.Empty(list)
}

func TestPersistenceFailureKeepsMutation(t *testing.T) {
	require := require.New(t)
	m, store := newTestManager()

	_, err := m.RegisterUser("100", "referrer")
	require.NoError(err)
	_, err = m.RegisterUser("200", "friend")
	require.NoError(err)

	store.saveErr = errors.New("диск переполнен")

	err = m.RegisterClick("200", "100")
	var perr *PersistenceError
	require.ErrorAs(err, &perr)

	// Мутация в памяти пережила сбой сохранения
	referrer, _ := store.Get("100")
	require.Len(referrer.Referral.Referrals, 1)
}
