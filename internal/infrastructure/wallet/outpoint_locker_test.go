package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestOutpointLocker(t *testing.T) {
	ctx := context.Background()
	locker := newInmemoryOutpointLocker(50 * time.Millisecond)

	outpoints := []wire.OutPoint{
		{Hash: chainhash.HashH([]byte("a")), Index: 0},
		{Hash: chainhash.HashH([]byte("b")), Index: 3},
	}

	locked, err := locker.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, locked)

	require.NoError(t, locker.Lock(ctx, outpoints...))

	locked, err = locker.Get(ctx)
	require.NoError(t, err)
	require.Len(t, locked, len(outpoints))
	for _, outpoint := range outpoints {
		require.Contains(t, locked, outpoint)
	}

	time.Sleep(60 * time.Millisecond)

	locked, err = locker.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, locked)
}

func TestOutpointLockerRenewal(t *testing.T) {
	ctx := context.Background()
	locker := newInmemoryOutpointLocker(50 * time.Millisecond)

	outpoint := wire.OutPoint{Hash: chainhash.HashH([]byte("renew")), Index: 1}

	require.NoError(t, locker.Lock(ctx, outpoint))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, locker.Lock(ctx, outpoint))
	time.Sleep(30 * time.Millisecond)

	locked, err := locker.Get(ctx)
	require.NoError(t, err)
	require.Contains(t, locked, outpoint)
}
