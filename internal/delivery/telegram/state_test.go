// internal/delivery/telegram/state_test.go
package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStateStore(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := NewMemoryStateStore()

	state, err := store.GetDialogState(ctx, "100")
	require.NoError(err)
	require.Equal(StateNone, state)

	require.NoError(store.SetDialogState(ctx, "100", StateAwaitingAccountID))

	state, err = store.GetDialogState(ctx, "100")
	require.NoError(err)
	require.Equal(StateAwaitingAccountID, state)

	// Чужое состояние не задето
	state, err = store.GetDialogState(ctx, "200")
	require.NoError(err)
	require.Equal(StateNone, state)

	require.NoError(store.ClearDialogState(ctx, "100"))
	state, err = store.GetDialogState(ctx, "100")
	require.NoError(err)
	require.Equal(StateNone, state)
}
