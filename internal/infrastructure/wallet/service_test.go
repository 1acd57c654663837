package wallet_test

import (
	"context"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/orddefi-labs/inscribed/internal/core/domain"
	"github.com/orddefi-labs/inscribed/internal/infrastructure/wallet"
	"github.com/orddefi-labs/inscribed/internal/infrastructure/wallet/cypher"
	"github.com/orddefi-labs/inscribed/internal/infrastructure/wallet/db"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon about"
	testPassword = "password"
)

type fakeScanner struct {
	utxos map[string][]domain.Utxo
}

func (s *fakeScanner) GetAddressUtxos(_ context.Context, address string) ([]domain.Utxo, error) {
	return s.utxos[address], nil
}

func newTestWallet(t *testing.T, scanner *fakeScanner) *wallet.Service {
	t.Helper()

	seedRepo, err := db.NewSeedRepository("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { seedRepo.Close() })

	if scanner == nil {
		scanner = &fakeScanner{}
	}

	return wallet.NewService(wallet.ServiceOptions{
		SeedRepo:  seedRepo,
		Cypher:    cypher.New(),
		Scanner:   scanner,
		Network:   &chaincfg.RegressionNetParams,
		Lookahead: 5,
	})
}

func TestWalletLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestWallet(t, nil)

	status := svc.Status(ctx)
	require.Equal(t, "uninitialized", status.String())

	mnemonic, err := svc.GenSeed(ctx)
	require.NoError(t, err)
	require.Len(t, strings.Fields(mnemonic), 24)

	require.NoError(t, svc.Create(ctx, mnemonic, testPassword))
	require.Equal(t, "unlocked", svc.Status(ctx).String())

	// creating twice must fail, the seed is the only durable state
	require.Error(t, svc.Create(ctx, mnemonic, testPassword))

	require.NoError(t, svc.Lock(ctx))
	require.Equal(t, "locked", svc.Status(ctx).String())

	_, err = svc.NewAddress(ctx)
	require.ErrorIs(t, err, wallet.ErrWalletLocked)

	require.Error(t, svc.Unlock(ctx, "wrong password"))
	require.NoError(t, svc.Unlock(ctx, testPassword))
	require.Equal(t, "unlocked", svc.Status(ctx).String())
}

func TestWalletCreateRejectsInvalidMnemonic(t *testing.T) {
	ctx := context.Background()
	svc := newTestWallet(t, nil)

	require.Error(t, svc.Create(ctx, "not a valid mnemonic", testPassword))
}

func TestWalletDerivationIsDeterministic(t *testing.T) {
	ctx := context.Background()

	first := newTestWallet(t, nil)
	require.NoError(t, first.Create(ctx, testMnemonic, testPassword))

	second := newTestWallet(t, nil)
	require.NoError(t, second.Create(ctx, testMnemonic, "another password"))

	firstAddrs, err := first.Addresses(ctx)
	require.NoError(t, err)
	secondAddrs, err := second.Addresses(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, firstAddrs)
	require.Equal(t, firstAddrs, secondAddrs)

	addr1, err := first.NewAddress(ctx)
	require.NoError(t, err)
	addr2, err := second.NewAddress(ctx)
	require.NoError(t, err)
	require.Equal(t, addr1, addr2)
	require.NotContains(t, firstAddrs, addr1)
}

func TestWalletNewAddress(t *testing.T) {
	ctx := context.Background()
	svc := newTestWallet(t, nil)
	require.NoError(t, svc.Create(ctx, testMnemonic, testPassword))

	addr, err := svc.NewAddress(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(addr, "bcrt1p"))

	decoded, err := btcutil.DecodeAddress(addr, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	require.IsType(t, &btcutil.AddressTaproot{}, decoded)

	addrs, err := svc.Addresses(ctx)
	require.NoError(t, err)
	require.Equal(t, addr, addrs[len(addrs)-1])

	next, err := svc.NewAddress(ctx)
	require.NoError(t, err)
	require.NotEqual(t, addr, next)
}

func TestWalletSpendableUtxosExcludeLocked(t *testing.T) {
	ctx := context.Background()

	scanner := &fakeScanner{utxos: make(map[string][]domain.Utxo)}
	svc := newTestWallet(t, scanner)
	require.NoError(t, svc.Create(ctx, testMnemonic, testPassword))

	addrs, err := svc.Addresses(ctx)
	require.NoError(t, err)
	addr := addrs[0]

	lockedOutpoint := wire.OutPoint{Hash: chainhash.HashH([]byte("locked")), Index: 0}
	freeOutpoint := wire.OutPoint{Hash: chainhash.HashH([]byte("free")), Index: 1}
	scanner.utxos[addr] = []domain.Utxo{
		{OutPoint: lockedOutpoint, Value: 50_000, Address: addr},
		{OutPoint: freeOutpoint, Value: 30_000, Address: addr},
	}

	require.NoError(t, svc.LockUtxos(ctx, []wire.OutPoint{lockedOutpoint}))

	spendable, err := svc.ListSpendableUtxos(ctx, addr)
	require.NoError(t, err)
	require.Len(t, spendable, 1)
	require.Equal(t, freeOutpoint, spendable[0].OutPoint)

	available, locked, err := svc.Balance(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(30_000), available)
	require.Equal(t, uint64(50_000), locked)
}

func TestWalletSignKeyPath(t *testing.T) {
	ctx := context.Background()
	svc := newTestWallet(t, nil)
	require.NoError(t, svc.Create(ctx, testMnemonic, testPassword))

	addrs, err := svc.Addresses(ctx)
	require.NoError(t, err)
	decoded, err := btcutil.DecodeAddress(addrs[0], &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(decoded)
	require.NoError(t, err)

	prevout := wire.NewTxOut(100_000, pkScript)
	prevOutpoint := wire.OutPoint{Hash: chainhash.HashH([]byte("funding")), Index: 0}

	unsignedTx := wire.NewMsgTx(2)
	unsignedTx.AddTxIn(wire.NewTxIn(&prevOutpoint, nil, nil))
	unsignedTx.AddTxOut(wire.NewTxOut(99_000, pkScript))

	packet, err := psbt.NewFromUnsignedTx(unsignedTx)
	require.NoError(t, err)
	packet.Inputs[0].WitnessUtxo = prevout
	packet.Inputs[0].SighashType = txscript.SigHashDefault

	require.NoError(t, svc.SignKeyPath(ctx, packet, 0))
	require.NotEmpty(t, packet.Inputs[0].TaprootKeySpendSig)

	require.NoError(t, psbt.Finalize(packet, 0))
	signedTx, err := psbt.Extract(packet)
	require.NoError(t, err)

	prevoutFetcher := txscript.NewCannedPrevOutputFetcher(pkScript, prevout.Value)
	sigHashes := txscript.NewTxSigHashes(signedTx, prevoutFetcher)
	vm, err := txscript.NewEngine(
		pkScript, signedTx, 0, txscript.StandardVerifyFlags,
		nil, sigHashes, prevout.Value, prevoutFetcher,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

func TestWalletSignKeyPathRejectsForeignScript(t *testing.T) {
	ctx := context.Background()
	svc := newTestWallet(t, nil)
	require.NoError(t, svc.Create(ctx, testMnemonic, testPassword))

	foreignScript := append([]byte{txscript.OP_1, 0x20}, chainhash.HashB([]byte("foreign"))...)
	prevOutpoint := wire.OutPoint{Hash: chainhash.HashH([]byte("funding")), Index: 0}

	unsignedTx := wire.NewMsgTx(2)
	unsignedTx.AddTxIn(wire.NewTxIn(&prevOutpoint, nil, nil))
	unsignedTx.AddTxOut(wire.NewTxOut(9_000, foreignScript))

	packet, err := psbt.NewFromUnsignedTx(unsignedTx)
	require.NoError(t, err)
	packet.Inputs[0].WitnessUtxo = wire.NewTxOut(10_000, foreignScript)
	packet.Inputs[0].SighashType = txscript.SigHashDefault

	err = svc.SignKeyPath(ctx, packet, 0)
	require.ErrorContains(t, err, "no wallet key owns script")
}
