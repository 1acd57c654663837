package domain

import (
	"github.com/btcsuite/btcd/wire"
)

// Utxo is a snapshot of a spendable output owned by the wallet collaborator.
// The engine only reads it, selection never mutates wallet state beyond the
// outpoint locks taken right before broadcast.
type Utxo struct {
	OutPoint      wire.OutPoint
	Value         uint64
	Address       string
	Script        []byte
	Confirmations int64
}

// InscriptionRequest is the single entrypoint payload of the engine.
type InscriptionRequest struct {
	// Wallet is the name of the wallet the spendable outputs belong to.
	Wallet string
	// FeeRate is the target fee rate in satoshis per vbyte, must be positive.
	FeeRate uint64
	// Origin is the address acting on the instruction, owner of the inputs.
	Origin string
	// Destination receives the reveal output. For privileged instructions it
	// must equal Origin.
	Destination string
	// Change receives the selection remainder when above the dust threshold.
	// Empty means change goes back to Origin.
	Change string
	// DryRun produces signed hex without touching the network.
	DryRun bool
	// RawInstruction is the instruction document as provided by the caller.
	RawInstruction []byte
}

// InscriptionResult is the outcome of a completed pipeline run. In dry-run
// mode only the hex fields are set; in broadcast mode the txids are set and
// RevealHex is retained so a partially failed submission can be retried by
// the caller without rebuilding.
type InscriptionResult struct {
	CommitTxid string `json:"commit,omitempty"`
	RevealTxid string `json:"reveal,omitempty"`
	CommitHex  string `json:"commit_hex,omitempty"`
	RevealHex  string `json:"reveal_hex,omitempty"`
	// RecoveryKey is the WIF-encoded one-time envelope key, surfaced so the
	// caller can back it up before the commit confirms. Never persisted.
	RecoveryKey string `json:"recovery_key,omitempty"`
	TotalFees   uint64 `json:"total_fees"`
}
