package ports

import (
	"context"

	"github.com/orddefi-labs/inscribed/internal/core/domain"
)

// Broadcaster submits raw transactions to the ledger and returns the accepted
// txid. Timeout and retry policy are the implementation's concern, the engine
// never auto-retries a rejected broadcast.
type Broadcaster interface {
	Broadcast(ctx context.Context, txHex string) (string, error)
}

// BlockchainScanner lists the confirmed and mempool outputs of an address.
// It backs the wallet collaborator's spendable-output snapshots.
type BlockchainScanner interface {
	GetAddressUtxos(ctx context.Context, address string) ([]domain.Utxo, error)
}
