package envelope

import (
	"github.com/btcsuite/btcd/btcec/v2"
)

// GenerateInternalKey returns a fresh one-time key pair for an envelope
// commitment. The private key must live no longer than the invocation that
// created it: callers are expected to Zero() it once the reveal witness has
// been produced.
func GenerateInternalKey() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey()
}
