package taproot

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// FinalizeCommit turns a fully signed commit packet into a broadcastable
// transaction and its hex serialization.
func FinalizeCommit(ptx *psbt.Packet) (*wire.MsgTx, string, error) {
	for i := range ptx.Inputs {
		if err := psbt.Finalize(ptx, i); err != nil {
			return nil, "", fmt.Errorf("failed to finalize input %d: %w", i, err)
		}
	}

	extracted, err := psbt.Extract(ptx)
	if err != nil {
		return nil, "", err
	}

	txHex, err := SerializeTx(extracted)
	if err != nil {
		return nil, "", err
	}

	return extracted, txHex, nil
}

// SerializeTx returns the hex serialization of a transaction, witnesses
// included.
func SerializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf.Bytes()), nil
}
