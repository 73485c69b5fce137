// internal/core/domain/referral/types.go
package referral

import "time"

// User запись пользователя бота. Ключ в хранилище — строковый Telegram ID.
type User struct {
	ID             string    `json:"-"`
	Username       string    `json:"username"`
	FirstName      string    `json:"first_name,omitempty"`
	RegisteredAt   time.Time `json:"registered_at"`
	PocketOptionID *string   `json:"pocket_option_id,omitempty"` // nil = не указан
	Deposited      bool      `json:"deposited"`
	Referral       *Record   `json:"referral,omitempty"`
}

// NewUser создает запись пользователя без реферального блока
func NewUser(id, username string, registeredAt time.Time) *User {
	return &User{
		ID:           id,
		Username:     username,
		RegisteredAt: registeredAt,
	}
}

// ReferralRecord возвращает реферальный блок, создавая его при первом обращении
func (u *User) ReferralRecord() *Record {
	if u.Referral == nil {
		u.Referral = NewRecord(u.ID)
	}
	return u.Referral
}

// Record реферальный блок пользователя
type Record struct {
	Code                 string            `json:"code"`
	InvitedBy            *string           `json:"invited_by,omitempty"` // nil = пришёл сам
	Referrals            []ReferralEntry   `json:"referrals"`            // клики по ссылке
	ActivatedReferrals   []ReferralEntry   `json:"activated_referrals"`  // выполнили условия
	BonusesClaimed       []string          `json:"bonuses_claimed"`      // ID полученных уровней
	TradingViewUsername  *string           `json:"tradingview_username,omitempty"`
	PendingBonusRequest  *PendingRequest   `json:"pending_bonus_request,omitempty"`
	BonusRequestsHistory []RequestLogEntry `json:"bonus_requests_history,omitempty"`
	ActiveSubscription   *ActiveBonus      `json:"active_subscription,omitempty"`
}

// NewRecord создает пустой реферальный блок с кодом ref_<id>
func NewRecord(userID string) *Record {
	return &Record{
		Code:               "ref_" + userID,
		Referrals:          []ReferralEntry{},
		ActivatedReferrals: []ReferralEntry{},
		BonusesClaimed:     []string{},
	}
}

// HasReferral проверяет, есть ли клик от данного пользователя
func (r *Record) HasReferral(userID string) bool {
	for _, entry := range r.Referrals {
		if entry.UserID == userID {
			return true
		}
	}
	return false
}

// HasActivated проверяет, активирован ли данный реферал
func (r *Record) HasActivated(userID string) bool {
	for _, entry := range r.ActivatedReferrals {
		if entry.UserID == userID {
			return true
		}
	}
	return false
}

// HasClaimed проверяет, получен ли бонус данного уровня
func (r *Record) HasClaimed(tierID string) bool {
	for _, id := range r.BonusesClaimed {
		if id == tierID {
			return true
		}
	}
	return false
}

// ReferralEntry один реферал в списке кликов или активаций
type ReferralEntry struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// PendingRequest заявка на бонус, ожидающая решения админа.
// У пользователя может быть максимум одна.
type PendingRequest struct {
	TierID      string    `json:"tier_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Статусы записей в истории заявок. Решение админа переводит
// ожидающую запись в конечный статус на месте.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// RequestLogEntry запись в истории заявок на бонусы
type RequestLogEntry struct {
	TierID      string     `json:"tier_id"`
	Status      string     `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	AdminID     string     `json:"admin_id,omitempty"` // кто одобрил/отклонил
	Reason      string     `json:"reason,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// ActiveBonus выданный бонус. Name и Days дублируются из каталога,
// чтобы запись читалась и после смены каталога.
// ExpiresAt == nil означает бессрочный доступ.
type ActiveBonus struct {
	TierID     string     `json:"tier_id"`
	Name       string     `json:"bonus_name"`
	Days       int        `json:"days"`
	GrantedAt  time.Time  `json:"granted_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Mentorship bool       `json:"mentorship,omitempty"`
}

// Active сообщает, действует ли бонус на момент now
func (b *ActiveBonus) Active(now time.Time) bool {
	if b == nil {
		return false
	}
	return b.ExpiresAt == nil || now.Before(*b.ExpiresAt)
}

// Stats статистика пользователя для вывода в боте
type Stats struct {
	Clicks         int
	Activated      int
	Available      []Tier // доступные для заявки уровни
	Claimed        []string
	Next           *Tier // следующий уровень, nil если достигнут высший
	Remaining      int   // сколько друзей до следующего уровня
	ProgressBar    string
	Pending        *PendingRequest
	ExternalHandle string // сохранённый TradingView username
	Link           string
}

// PendingRequestInfo элемент очереди заявок для админа
type PendingRequestInfo struct {
	UserID              string
	Username            string
	TierID              string
	TierName            string
	RequestedAt         time.Time
	ActivatedCount      int
	TradingViewUsername string
}

// TopReferrer строка рейтинга рефереров
type TopReferrer struct {
	UserID    string
	Username  string
	Activated int
}

// GlobalStats сводная статистика программы
type GlobalStats struct {
	TotalUsers      int
	Referrers       int // пользователи хотя бы с одним кликом
	TotalClicks     int
	TotalActivated  int
	ConversionRate  float64 // активации / клики × 100, 0 при нуле кликов
	PendingRequests int
	BonusesGranted  int
}

// Store контракт хранилища пользователей. Мутации применяются в памяти
// через Put, персистентность — отдельным вызовом Save. All возвращает
// пользователей в порядке добавления.
type Store interface {
	Get(id string) (*User, bool)
	Put(u *User)
	Delete(id string)
	All() []*User
	Len() int
	Save() error
	Load() error
}
