package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentStoreRetrieve(t *testing.T) {
	t.Setenv("PIXIVWATCH_REFRESH_TOKEN", "env-token")

	store := NewEnvironmentStore()
	account, err := store.Retrieve("anything")
	require.NoError(t, err)
	assert.Equal(t, "env-token", account.RefreshToken)

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnvironmentStoreEmpty(t *testing.T) {
	t.Setenv("PIXIVWATCH_REFRESH_TOKEN", "")

	store := NewEnvironmentStore()
	_, err := store.Retrieve("anything")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEnvironmentStoreReadOnly(t *testing.T) {
	store := NewEnvironmentStore()
	assert.ErrorIs(t, store.Store(&Account{Name: "x", RefreshToken: "y"}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("x"), ErrStoreUnavailable)
}
