// internal/core/domain/referral/catalog.go
package referral

import (
	"fmt"
	"sort"
	"strings"
)

// Виды наград
const (
	RewardSubscription = "subscription"            // подписка на индикатор
	RewardMentorship   = "subscription+mentorship" // софт + персональное менторство
)

// Tier уровень бонуса реферальной программы
type Tier struct {
	ID              string `json:"id"`   // level_1, level_2, ...
	Rank            int    `json:"rank"` // явный порядковый номер уровня
	FriendsRequired int    `json:"friends_required"`
	RewardDays      int    `json:"reward_days"` // 0 = бессрочно
	RewardKind      string `json:"reward_kind"`
	Name            string `json:"name"`
	Description     string `json:"description"`
}

// Unlimited сообщает, что награда не ограничена по времени
func (t Tier) Unlimited() bool {
	return t.RewardDays == 0
}

// Catalog упорядоченный список уровней бонусов.
// Уровни отсортированы по возрастанию friends_required, пороги строго растут.
type Catalog struct {
	tiers []Tier
}

// DefaultCatalog возвращает каталог бонусов программы "Здравый Трейдер"
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog([]Tier{
		{
			ID:              "level_1",
			Rank:            1,
			FriendsRequired: 2,
			RewardDays:      7,
			RewardKind:      RewardSubscription,
			Name:            "Неделя подписки",
			Description:     "Подписка на индикатор Black Mirror Ultra на 7 дней",
		},
		{
			ID:              "level_2",
			Rank:            2,
			FriendsRequired: 5,
			RewardDays:      30,
			RewardKind:      RewardSubscription,
			Name:            "Месяц подписки",
			Description:     "Подписка на индикатор Black Mirror Ultra на 30 дней",
		},
		{
			ID:              "level_3",
			Rank:            3,
			FriendsRequired: 10,
			RewardDays:      7,
			RewardKind:      RewardMentorship,
			Name:            "Софт + Менторство",
			Description:     "Полный доступ к софту и персональное менторство",
		},
	})
	return c
}

// NewCatalog создает каталог и проверяет инварианты списка уровней
func NewCatalog(tiers []Tier) (*Catalog, error) {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FriendsRequired < sorted[j].FriendsRequired
	})

	seen := make(map[string]bool)
	for i, tier := range sorted {
		if tier.ID == "" {
			return nil, fmt.Errorf("уровень %d: пустой ID", i)
		}
		if seen[tier.ID] {
			return nil, fmt.Errorf("дубликат уровня: %s", tier.ID)
		}
		seen[tier.ID] = true

		if tier.FriendsRequired <= 0 {
			return nil, fmt.Errorf("уровень %s: порог должен быть положительным", tier.ID)
		}
		if i > 0 && tier.FriendsRequired == sorted[i-1].FriendsRequired {
			return nil, fmt.Errorf("уровни %s и %s: одинаковый порог %d",
				sorted[i-1].ID, tier.ID, tier.FriendsRequired)
		}
	}

	return &Catalog{tiers: sorted}, nil
}

// Tiers возвращает копию списка уровней
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// TierByID находит уровень по идентификатору
func (c *Catalog) TierByID(id string) (Tier, bool) {
	for _, tier := range c.tiers {
		if tier.ID == id {
			return tier, true
		}
	}
	return Tier{}, false
}

// TierByThreshold находит уровень с порогом ровно count.
// Используется для определения момента пересечения уровня.
func (c *Catalog) TierByThreshold(count int) (Tier, bool) {
	for _, tier := range c.tiers {
		if tier.FriendsRequired == count {
			return tier, true
		}
	}
	return Tier{}, false
}

// MaxThreshold возвращает порог высшего уровня
func (c *Catalog) MaxThreshold() int {
	if len(c.tiers) == 0 {
		return 0
	}
	return c.tiers[len(c.tiers)-1].FriendsRequired
}

// BonusForCount возвращает высший уровень, порог которого достигнут.
// Просматриваем уровни от высшего к низшему, первый подходящий побеждает.
func (c *Catalog) BonusForCount(count int) (Tier, bool) {
	if count < 0 {
		count = 0
	}
	for i := len(c.tiers) - 1; i >= 0; i-- {
		if count >= c.tiers[i].FriendsRequired {
			return c.tiers[i], true
		}
	}
	return Tier{}, false
}

// NextTier возвращает следующий недостигнутый уровень и сколько до него осталось.
// Если достигнут высший уровень — (Tier{}, 0, false).
func (c *Catalog) NextTier(count int) (Tier, int, bool) {
	if count < 0 {
		count = 0
	}
	for _, tier := range c.tiers {
		if count < tier.FriendsRequired {
			return tier, tier.FriendsRequired - count, true
		}
	}
	return Tier{}, 0, false
}

// AvailableBonuses возвращает уровни, доступные для заявки: порог достигнут,
// уровень не забран и выше максимального уже забранного ранга.
// Политика "храповика": после получения высшего бонуса нижние недоступны навсегда.
func (c *Catalog) AvailableBonuses(count int, claimedIDs []string) []Tier {
	if count < 0 {
		count = 0
	}

	claimed := make(map[string]bool, len(claimedIDs))
	for _, id := range claimedIDs {
		claimed[id] = true
	}

	maxClaimedRank := 0
	for _, tier := range c.tiers {
		if claimed[tier.ID] && tier.Rank > maxClaimedRank {
			maxClaimedRank = tier.Rank
		}
	}

	var available []Tier
	for _, tier := range c.tiers {
		if count >= tier.FriendsRequired && !claimed[tier.ID] && tier.Rank > maxClaimedRank {
			available = append(available, tier)
		}
	}
	return available
}

// ProgressBar генерирует прогресс-бар до следующего уровня.
// Формат детерминирован: "[▓▓░░░] 2/5", при достижении всех уровней —
// полная шкала по порогу высшего уровня и общий счёт.
func (c *Catalog) ProgressBar(count int) string {
	if count < 0 {
		count = 0
	}

	next, _, ok := c.NextTier(count)
	if !ok {
		// Все уровни достигнуты — показываем полную шкалу и общий счёт
		maxTarget := c.MaxThreshold()
		if maxTarget == 0 {
			maxTarget = 10
		}
		bar := strings.Repeat("▓", maxTarget)
		return fmt.Sprintf("🏆 [%s] %d друзей", bar, count)
	}

	target := next.FriendsRequired
	filled := count
	if filled > target {
		filled = target
	}

	bar := strings.Repeat("▓", filled) + strings.Repeat("░", target-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, filled, target)
}
