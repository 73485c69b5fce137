// internal/core/domain/referral/catalog_test.go
package referral

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBonusForCount(t *testing.T) {
	require := require.New(t)
	c := DefaultCatalog()

	_, ok := c.BonusForCount(0)
	require.False(ok)

	_, ok = c.BonusForCount(1)
	require.False(ok)

	tier, ok := c.BonusForCount(2)
	require.True(ok)
	require.Equal("level_1", tier.ID)

	tier, ok = c.BonusForCount(4)
	require.True(ok)
	require.Equal("level_1", tier.ID)

	tier, ok = c.BonusForCount(5)
	require.True(ok)
	require.Equal("level_2", tier.ID)

	// Отрицательное значение эквивалентно нулю
	_, ok = c.BonusForCount(-3)
	require.False(ok)

	tier, ok = c.BonusForCount(100)
	require.True(ok)
	require.Equal("level_3", tier.ID)
}

func TestNextTier(t *testing.T) {
	require := require.New(t)
	c := DefaultCatalog()

	next, remaining, ok := c.NextTier(0)
	require.True(ok)
	require.Equal("level_1", next.ID)
	require.Equal(2, remaining)

	next, remaining, ok = c.NextTier(2)
	require.True(ok)
	require.Equal("level_2", next.ID)
	require.Equal(3, remaining)

	next, remaining, ok = c.NextTier(9)
	require.True(ok)
	require.Equal("level_3", next.ID)
	require.Equal(1, remaining)

	_, _, ok = c.NextTier(10)
	require.False(ok)

	_, _, ok = c.NextTier(50)
	require.False(ok)
}

func TestAvailableBonusesRatchet(t *testing.T) {
	require := require.New(t)
	c := DefaultCatalog()

	// Порог не достигнут
	require.Empty(c.AvailableBonuses(1, nil))

	available := c.AvailableBonuses(2, nil)
	require.Len(available, 1)
	require.Equal("level_1", available[0].ID)

	available = c.AvailableBonuses(6, nil)
	require.Len(available, 2)
	require.Equal("level_1", available[0].ID)
	require.Equal("level_2", available[1].ID)

	// Забран level_1: остаётся только level_2
	available = c.AvailableBonuses(6, []string{"level_1"})
	require.Len(available, 1)
	require.Equal("level_2", available[0].ID)

	// Храповик: после level_2 нижний level_1 недоступен навсегда
	available = c.AvailableBonuses(6, []string{"level_2"})
	require.Empty(available)

	available = c.AvailableBonuses(10, []string{"level_2"})
	require.Len(available, 1)
	require.Equal("level_3", available[0].ID)

	// Всё забрано
	require.Empty(c.AvailableBonuses(10, []string{"level_1", "level_2", "level_3"}))
}

func TestProgressBar(t *testing.T) {
	require := require.New(t)
	c := DefaultCatalog()

	require.Equal("[░░] 0/2", c.ProgressBar(0))
	require.Equal("[▓░] 1/2", c.ProgressBar(1))
	require.Equal("[▓▓░░░] 2/5", c.ProgressBar(2))
	require.Equal("[▓▓▓▓░] 4/5", c.ProgressBar(4))
	require.Equal("[▓▓▓▓▓░░░░░] 5/10", c.ProgressBar(5))

	// Высший уровень достигнут: полная шкала и общий счёт
	require.Equal("🏆 [▓▓▓▓▓▓▓▓▓▓] 10 друзей", c.ProgressBar(10))
	require.Equal("🏆 [▓▓▓▓▓▓▓▓▓▓] 13 друзей", c.ProgressBar(13))

	// Отрицательное значение эквивалентно нулю
	require.Equal("[░░] 0/2", c.ProgressBar(-1))
}

func TestNewCatalogValidation(t *testing.T) {
	require := require.New(t)

	_, err := NewCatalog([]Tier{{ID: "", Rank: 1, FriendsRequired: 2}})
	require.Error(err)

	_, err = NewCatalog([]Tier{
		{ID: "a", Rank: 1, FriendsRequired: 2},
		{ID: "a", Rank: 2, FriendsRequired: 5},
	})
	require.Error(err)

	_, err = NewCatalog([]Tier{{ID: "a", Rank: 1, FriendsRequired: 0}})
	require.Error(err)

	_, err = NewCatalog([]Tier{
		{ID: "a", Rank: 1, FriendsRequired: 3},
		{ID: "b", Rank: 2, FriendsRequired: 3},
	})
	require.Error(err)

	// Несортированный вход упорядочивается по порогу
	c, err := NewCatalog([]Tier{
		{ID: "big", Rank: 2, FriendsRequired: 9},
		{ID: "small", Rank: 1, FriendsRequired: 3},
	})
	require.NoError(err)
	tiers := c.Tiers()
	require.Equal("small", tiers[0].ID)
	require.Equal("big", tiers[1].ID)
	require.Equal(9, c.MaxThreshold())
}

func TestTierByThreshold(t *testing.T) {
	require := require.New(t)
	c := DefaultCatalog()

	tier, ok := c.TierByThreshold(5)
	require.True(ok)
	require.Equal("level_2", tier.ID)

	_, ok = c.TierByThreshold(3)
	require.False(ok)
}
