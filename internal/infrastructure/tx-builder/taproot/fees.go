package taproot

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcwallet/waddrmgr"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"

	"github.com/orddefi-labs/inscribed/internal/core/domain"
	"github.com/orddefi-labs/inscribed/pkg/ordfi-lib/envelope"
)

// tapscriptSigWitnessSize is the witness bytes consumed by the single schnorr
// signature item of a script-path spend: 64-byte signature plus its varint
// prefix, with one spare byte for a non-default sighash flag.
const tapscriptSigWitnessSize = 66

// feeEstimator models virtual sizes with a fixed witness/signature size model
// and turns them into fees at an integral sats-per-vbyte rate.
type feeEstimator struct {
	feeRate chainfee.SatPerKVByte

	// commitDelta and revealDelta shift the modelled sizes by the divergence
	// observed on signed transactions during a rebuild.
	commitDelta int
	revealDelta int
}

func newFeeEstimator(satsPerVByte uint64) feeEstimator {
	return feeEstimator{feeRate: chainfee.SatPerKVByte(satsPerVByte * 1000)}
}

// fee converts a virtual size into satoshis at the target rate.
func (f feeEstimator) fee(vsize int) uint64 {
	amt := f.feeRate.FeeForVSize(lntypes.VByte(vsize))
	return uint64(math.Ceil(amt.ToUnit(btcutil.AmountSatoshi)))
}

// commitVSize returns the modelled virtual size of a commit transaction
// spending the given coins into the given output scripts. The caller decides
// whether the carrier output is part of the basis by including or omitting
// its script.
func (f feeEstimator) commitVSize(coins []domain.Utxo, outputScripts [][]byte) (int, error) {
	estimator := &input.TxWeightEstimator{}

	for _, coin := range coins {
		pkScript, err := txscript.ParsePkScript(coin.Script)
		if err != nil {
			return 0, fmt.Errorf("unparseable input script for %s: %s", coin.OutPoint, err)
		}

		switch pkScript.Class() {
		case txscript.WitnessV1TaprootTy:
			estimator.AddTaprootKeySpendInput(txscript.SigHashDefault)
		case txscript.WitnessV0PubKeyHashTy:
			estimator.AddP2WKHInput()
		case txscript.PubKeyHashTy:
			estimator.AddP2PKHInput()
		default:
			return 0, fmt.Errorf("unsupported input script type %v for %s",
				pkScript.Class(), coin.OutPoint)
		}
	}

	for _, script := range outputScripts {
		estimator.AddOutput(script)
	}

	return int(estimator.VSize()) + f.commitDelta, nil
}

// revealEstimator models the reveal transaction: a single script-path input
// revealing the envelope leaf plus the destination output.
func (f feeEstimator) revealEstimator(
	env *envelope.Envelope, destScript []byte,
) (*input.TxWeightEstimator, error) {
	ctrlBlock, err := txscript.ParseControlBlock(env.ControlBlock)
	if err != nil {
		return nil, err
	}

	estimator := &input.TxWeightEstimator{}
	estimator.AddTapscriptInput(tapscriptSigWitnessSize, &waddrmgr.Tapscript{
		RevealedScript: env.LeafScript,
		ControlBlock:   ctrlBlock,
	})
	estimator.AddOutput(destScript)

	return estimator, nil
}
