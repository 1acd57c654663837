package ports

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/orddefi-labs/inscribed/internal/core/domain"
)

// WalletService is the wallet collaborator consumed by the inscriber engine.
// Key storage and address derivation live behind this interface, the engine
// never sees seed material.
type WalletService interface {
	// ListSpendableUtxos snapshots the spendable outputs owned by address,
	// excluding anything currently locked.
	ListSpendableUtxos(ctx context.Context, address string) ([]domain.Utxo, error)
	// LockUtxos reserves outpoints so concurrent invocations against the same
	// wallet cannot double-select them. Locks expire on their own.
	LockUtxos(ctx context.Context, outpoints []wire.OutPoint) error
	// SignKeyPath produces the key-path signature for the given input of the
	// packet and stores it in the corresponding PInput.
	SignKeyPath(ctx context.Context, packet *psbt.Packet, inputIndex int) error
	// SignScriptPath signs the given input of tx against the tapscript leaf
	// with the supplied key and returns the schnorr signature bytes. The key
	// is caller-owned ephemeral material, the wallet never retains it.
	SignScriptPath(
		ctx context.Context, key *btcec.PrivateKey, tx *wire.MsgTx, inputIndex int,
		prevouts txscript.PrevOutputFetcher, leaf txscript.TapLeaf,
	) ([]byte, error)
	// NewAddress derives a fresh receive address.
	NewAddress(ctx context.Context) (string, error)
}
