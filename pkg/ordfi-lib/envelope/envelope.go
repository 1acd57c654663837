package envelope

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/orddefi-labs/inscribed/pkg/ordfi-lib/instruction"
)

var (
	// ErrPayloadTooLarge is returned when the encoded payload exceeds the
	// configured ceiling. Nothing is built past this point.
	ErrPayloadTooLarge = errors.New("payload exceeds envelope size ceiling")

	ErrNotAnEnvelope = errors.New("script does not contain an instruction envelope")
)

// DefaultMaxChunkSize is the consensus limit on a single script data push.
const DefaultMaxChunkSize = txscript.MaxScriptElementSize

// Envelope is a taproot commitment to a canonical instruction payload. The
// payload lives in a guarded OP_FALSE OP_IF branch of the single leaf script,
// so it is never executed when the leaf is spent, and the leaf is only
// spendable by the internal key's script-path signature.
type Envelope struct {
	// Payload is the canonical instruction bytes carried by the leaf.
	Payload []byte
	// LeafScript is <internal-key> OP_CHECKSIG followed by the guarded branch.
	LeafScript []byte
	// ControlBlock proves leaf membership when spending the script path.
	ControlBlock []byte
	// InternalKey is the one-time key the leaf is keyed to.
	InternalKey *btcec.PublicKey
	// OutputKey is the tweaked taproot output key committing to the leaf.
	OutputKey *btcec.PublicKey
	// PkScript is the pay-to-taproot script of OutputKey, to be carried by
	// the commit transaction's reveal-funding output.
	PkScript []byte
}

type Options struct {
	// MaxChunkSize caps a single data push inside the envelope.
	MaxChunkSize int
	// MaxPayloadSize caps the total canonical payload size. Zero means no
	// ceiling beyond the chunk arithmetic itself.
	MaxPayloadSize int
}

func DefaultOptions() Options {
	return Options{
		MaxChunkSize:   DefaultMaxChunkSize,
		MaxPayloadSize: 0,
	}
}

// New wraps canonical payload bytes into a leaf script keyed to internalKey
// and computes the taproot commitment. Building is pure and deterministic:
// the same payload and key always produce byte-identical scripts.
func New(payload []byte, internalKey *btcec.PublicKey, opts Options) (*Envelope, error) {
	if opts.MaxChunkSize <= 0 || opts.MaxChunkSize > txscript.MaxScriptElementSize {
		return nil, fmt.Errorf("invalid chunk size %d, must be in (0, %d]",
			opts.MaxChunkSize, txscript.MaxScriptElementSize)
	}
	if opts.MaxPayloadSize > 0 && len(payload) > opts.MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d > %d bytes",
			ErrPayloadTooLarge, len(payload), opts.MaxPayloadSize)
	}

	builder := txscript.NewScriptBuilder().
		AddData(schnorr.SerializePubKey(internalKey)).
		AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_FALSE).
		AddOp(txscript.OP_IF).
		AddData(instruction.ProtocolTag).
		AddOp(txscript.OP_0)

	for _, chunk := range chunkPayload(payload, opts.MaxChunkSize) {
		builder.AddData(chunk)
	}
	builder.AddOp(txscript.OP_ENDIF)

	leafScript, err := builder.Script()
	if err != nil {
		return nil, fmt.Errorf("failed to build leaf script: %w", err)
	}

	tapLeaf := txscript.NewBaseTapLeaf(leafScript)
	tapTree := txscript.AssembleTaprootScriptTree(tapLeaf)

	ctrlBlock := tapTree.LeafMerkleProofs[0].ToControlBlock(internalKey)
	ctrlBlockBytes, err := ctrlBlock.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize control block: %w", err)
	}

	rootHash := tapTree.RootNode.TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, rootHash[:])

	pkScript, err := txscript.PayToTaprootScript(outputKey)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Payload:      payload,
		LeafScript:   leafScript,
		ControlBlock: ctrlBlockBytes,
		InternalKey:  internalKey,
		OutputKey:    outputKey,
		PkScript:     pkScript,
	}, nil
}

// Address returns the commit address funding the reveal spend.
func (e *Envelope) Address(params *chaincfg.Params) (btcutil.Address, error) {
	return btcutil.NewAddressTaproot(schnorr.SerializePubKey(e.OutputKey), params)
}

// TapLeaf returns the leaf wrapped for sighash computation.
func (e *Envelope) TapLeaf() txscript.TapLeaf {
	return txscript.NewBaseTapLeaf(e.LeafScript)
}

// RevealWitness assembles the script-path witness stack for the reveal input:
// signature, revealed leaf script, control block.
func (e *Envelope) RevealWitness(signature []byte) wire.TxWitness {
	return wire.TxWitness{signature, e.LeafScript, e.ControlBlock}
}

func chunkPayload(payload []byte, chunkSize int) [][]byte {
	chunks := make([][]byte, 0, len(payload)/chunkSize+1)
	for len(payload) > chunkSize {
		chunks = append(chunks, payload[:chunkSize])
		payload = payload[chunkSize:]
	}
	return append(chunks, payload)
}

// ParseLeafScript extracts the canonical payload carried by a leaf script
// built with New. It is the inverse of the envelope construction and is used
// to verify round-trips without touching the chain.
func ParseLeafScript(leafScript []byte) ([]byte, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, leafScript)

	// Scan for the guarded branch: OP_FALSE OP_IF <tag>.
	inEnvelope := false
	sawFalse := false
	sawIf := false
	payload := make([]byte, 0, len(leafScript))
	for tokenizer.Next() {
		op := tokenizer.Opcode()

		if inEnvelope {
			if op == txscript.OP_ENDIF {
				return payload, nil
			}
			payload = append(payload, tokenizer.Data()...)
			continue
		}

		switch {
		case op == txscript.OP_FALSE && !sawFalse:
			sawFalse = true
		case op == txscript.OP_IF && sawFalse && !sawIf:
			sawIf = true
		case sawIf && bytes.Equal(tokenizer.Data(), instruction.ProtocolTag):
			inEnvelope = true
		case sawIf:
			return nil, ErrNotAnEnvelope
		default:
			sawFalse = false
			sawIf = false
		}
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}

	return nil, ErrNotAnEnvelope
}
