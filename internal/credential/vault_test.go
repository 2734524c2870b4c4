package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bekovrafik/DreamColor/internal/repository"
	"github.com/bekovrafik/DreamColor/internal/repository/memory"
)

var secret = []byte("test-daemon-secret-0123456789abc")

func newVault(t *testing.T, kv *memory.KV, fallback string) *Vault {
	t.Helper()
	v, err := NewVault(repository.NewStateRepo(kv), secret, fallback, zaptest.NewLogger(t))
	require.NoError(t, err)
	return v
}

func TestVault_SetPersistsSealed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.New()
	v := newVault(t, kv, "")

	require.False(t, v.HasValidCredential(ctx))
	_, err := v.APIKey(ctx)
	require.True(t, IsMissing(err))

	require.NoError(t, v.Set(ctx, " AIza-123 "))
	key, err := v.APIKey(ctx)
	require.NoError(t, err)
	require.Equal(t, "AIza-123", key)

	raw, err := kv.Get(ctx, repository.KeyCredential)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "AIza-123")

	again := newVault(t, kv, "")
	key, err = again.APIKey(ctx)
	require.NoError(t, err)
	require.Equal(t, "AIza-123", key)
}

func TestVault_Fallback(t *testing.T) {
	t.Parallel()
	v := newVault(t, memory.New(), "env-key")
	key, err := v.APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "env-key", key)
}

func TestVault_WrongSecretFallsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.New()
	require.NoError(t, newVault(t, kv, "").Set(ctx, "stored"))

	other, err := NewVault(repository.NewStateRepo(kv), []byte("another-secret"), "", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.False(t, other.HasValidCredential(ctx))
}

func TestVault_PromptReleasedBySet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := newVault(t, memory.New(), "")

	done := make(chan error, 1)
	go func() { done <- v.PromptForCredential(ctx) }()

	require.Eventually(t, v.Pending, time.Second, 5*time.Millisecond)
	require.NoError(t, v.Set(ctx, "fresh"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("prompt not released")
	}
	require.False(t, v.Pending())
}

func TestVault_PromptCanceled(t *testing.T) {
	t.Parallel()
	v := newVault(t, memory.New(), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, v.PromptForCredential(ctx), context.Canceled)
	require.Error(t, v.Set(context.Background(), "  "))
}
