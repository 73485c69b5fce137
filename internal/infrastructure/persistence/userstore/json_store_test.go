// internal/infrastructure/persistence/userstore/json_store_test.go
package userstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrNaPaSS/menutrade/internal/core/domain/referral"
)

func testUser(id, username string) *referral.User {
	return referral.NewUser(id, username, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func TestJSONStoreRoundTrip(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "users_db.json")

	store, err := NewJSONStore(path)
	require.NoError(err)
	require.Zero(store.Len())

	alice := testUser("100", "alice")
	rec := alice.ReferralRecord()
	invitedBy := "999"
	rec.InvitedBy = &invitedBy
	rec.Referrals = append(rec.Referrals, referral.ReferralEntry{
		UserID:    "200",
		Timestamp: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	})
	rec.BonusesClaimed = append(rec.BonusesClaimed, "level_1")
	accountID := "777001"
	alice.PocketOptionID = &accountID
	alice.Deposited = true

	store.Put(alice)
	store.Put(testUser("200", "bob"))
	require.NoError(store.Save())

	// Загружаем в свежее хранилище
	reloaded, err := NewJSONStore(path)
	require.NoError(err)
	require.Equal(2, reloaded.Len())

	got, ok := reloaded.Get("100")
	require.True(ok)
	require.Equal("100", got.ID)
	require.Equal("alice", got.Username)
	require.NotNil(got.PocketOptionID)
	require.Equal("777001", *got.PocketOptionID)
	require.True(got.Deposited)

	require.NotNil(got.Referral)
	require.Equal("ref_100", got.Referral.Code)
	require.NotNil(got.Referral.InvitedBy)
	require.Equal("999", *got.Referral.InvitedBy)
	require.Len(got.Referral.Referrals, 1)
	require.Equal("200", got.Referral.Referrals[0].UserID)
	require.Equal([]string{"level_1"}, got.Referral.BonusesClaimed)

	// Реферальный блок у bob не создавался
	bob, ok := reloaded.Get("200")
	require.True(ok)
	require.Nil(bob.Referral)
}

func TestJSONStoreOrderAfterLoad(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "users_db.json")

	store, err := NewJSONStore(path)
	require.NoError(err)

	// Числовые ID восстанавливаются по возрастанию
	store.Put(testUser("30", "c"))
	store.Put(testUser("7", "a"))
	store.Put(testUser("100", "d"))
	require.NoError(store.Save())

	reloaded, err := NewJSONStore(path)
	require.NoError(err)

	all := reloaded.All()
	require.Len(all, 3)
	require.Equal("7", all[0].ID)
	require.Equal("30", all[1].ID)
	require.Equal("100", all[2].ID)
}

func TestJSONStoreDirtyFlag(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "users_db.json")

	store, err := NewJSONStore(path)
	require.NoError(err)

	store.Put(testUser("1", "a"))
	require.NoError(store.Save())

	info1, err := os.Stat(path)
	require.NoError(err)

	// Save без изменений не переписывает файл
	require.NoError(store.Save())
	info2, err := os.Stat(path)
	require.NoError(err)
	require.Equal(info1.ModTime(), info2.ModTime())
}

func TestJSONStoreDelete(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "users_db.json")

	store, err := NewJSONStore(path)
	require.NoError(err)

	store.Put(testUser("1", "a"))
	store.Put(testUser("2", "b"))
	store.Delete("1")

	_, ok := store.Get("1")
	require.False(ok)
	require.Equal(1, store.Len())

	require.NoError(store.Save())
	reloaded, err := NewJSONStore(path)
	require.NoError(err)
	require.Equal(1, reloaded.Len())

	all := reloaded.All()
	require.Equal("2", all[0].ID)
}

func TestJSONStoreMissingFile(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "missing", "users_db.json")

	// Отсутствующий файл — пустое хранилище, каталог создается при Save
	store, err := NewJSONStore(path)
	require.NoError(err)
	require.Zero(store.Len())

	store.Put(testUser("1", "a"))
	require.NoError(store.Save())

	_, err = os.Stat(path)
	require.NoError(err)
}
