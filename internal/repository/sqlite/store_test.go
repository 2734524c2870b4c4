package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bekovrafik/DreamColor/internal/errs"
)

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dreamcolor.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "ledger")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.Put(ctx, "ledger", []byte(`{"credits":6}`)))
	require.NoError(t, s.Put(ctx, "ledger", []byte(`{"credits":0}`)))

	got, err := s.Get(ctx, "ledger")
	require.NoError(t, err)
	require.Equal(t, `{"credits":0}`, string(got))

	require.NoError(t, s.Delete(ctx, "ledger"))
	require.NoError(t, s.Delete(ctx, "ledger"))
	_, err = s.Get(ctx, "ledger")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dreamcolor.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "books", []byte(`[]`)))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(ctx))
	got, err := s.Get(ctx, "books")
	require.NoError(t, err)
	require.Equal(t, `[]`, string(got))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}
