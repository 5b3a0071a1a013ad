package env

import (
	"context"
	"testing"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreVarName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DROPIN_COURTS_API_TOKEN", NewStore("dropin").VarName("courts/api-token"))
	assert.Equal(t, "COURTS_API_TOKEN", NewStore("").VarName(" courts/api-token "))
}

func TestStoreGet(t *testing.T) {
	t.Parallel()

	store := NewStore("DROPIN")
	store.lookup = func(name string) (string, bool) {
		if name == "DROPIN_COURTS_API_TOKEN" {
			return "tok-123", true
		}
		return "", false
	}

	got, err := store.Get(context.Background(), "courts/api-token")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", got)

	_, err = store.Get(context.Background(), "courts/other")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	_, err = store.Get(context.Background(), " ")
	require.Error(t, err)
}

func TestStoreIsReadOnly(t *testing.T) {
	t.Parallel()

	store := NewStore("DROPIN")
	require.ErrorIs(t, store.Put(context.Background(), "courts/api-token", "x"), ErrReadOnly)
	require.ErrorIs(t, store.Delete(context.Background(), "courts/api-token"), ErrReadOnly)
}
