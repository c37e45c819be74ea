package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"

	"tradepulse/services/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Wallet{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	keeper, err := NewKeeper(testKeyHex)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node, Keeper: keeper})
}

func TestImport(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	w, err := svc.Import(ctx, 42, "Addr1", []byte("seed"))
	require.NoError(t, err)
	require.NotEmpty(t, w.ID)
	require.NotEmpty(t, w.EncryptedKey)
	require.NotEqual(t, "seed", w.EncryptedKey)

	t.Run("duplicate address rejected", func(t *testing.T) {
		_, err := svc.Import(ctx, 43, "Addr1", []byte("other"))
		require.Error(t, err)
	})

	t.Run("empty address rejected", func(t *testing.T) {
		_, err := svc.Import(ctx, 42, "", []byte("seed"))
		require.Error(t, err)
	})

	t.Run("empty material rejected", func(t *testing.T) {
		_, err := svc.Import(ctx, 42, "Addr2", nil)
		require.Error(t, err)
	})
}

func TestGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	w, err := svc.Import(ctx, 42, "Addr1", []byte("seed"))
	require.NoError(t, err)

	found, err := svc.Get(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, w.Address, found.Address)

	missing, err := svc.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestResolveSigningMaterial(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	w, err := svc.Import(ctx, 42, "Addr1", []byte("seed"))
	require.NoError(t, err)

	secret, err := svc.ResolveSigningMaterial(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("seed"), secret)

	_, err = svc.ResolveSigningMaterial(ctx, "nope")
	require.Error(t, err)
}

func TestOldestWalletAddress(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Import(ctx, 42, "Addr1", []byte("seed1"))
	require.NoError(t, err)

	// imports are ordered by creation time
	time.Sleep(5 * time.Millisecond)
	_, err = svc.Import(ctx, 42, "Addr2", []byte("seed2"))
	require.NoError(t, err)

	addr, err := svc.OldestWalletAddress(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, first.Address, addr)

	none, err := svc.OldestWalletAddress(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, none)

	all, err := svc.ListByOwner(ctx, 42)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
