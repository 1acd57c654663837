package taproot

import (
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"

	"github.com/orddefi-labs/inscribed/internal/core/domain"
	"github.com/orddefi-labs/inscribed/pkg/ordfi-lib/envelope"
)

// carrierTag marks the auxiliary zero-value data-carrier output appended to
// every commit transaction. The output is part of the transaction's weight
// but excluded from the fee-rate target basis.
const carrierTag = "orddefi:auth"

// biggest input size we may add later to spend a change output, used to
// derive the minimum economical change amount from the relay fee floor.
const biggestInputSize = 148 + 182 // = 330 vbytes

// rbfSequence opts every input into replace-by-fee without enabling
// locktime semantics.
const rbfSequence = wire.MaxTxInSequenceNum - 2

type Config struct {
	ChainParams *chaincfg.Params
	// Postage is the value carried through to the destination by the reveal.
	Postage uint64
	// MinChange overrides the derived economical-change threshold when > 0.
	MinChange uint64
	// MaxStandardTxWeight bounds the reveal transaction weight.
	MaxStandardTxWeight int
	// VSizeTolerance is the allowed divergence, in vbytes per transaction,
	// between modelled and actual sizes.
	VSizeTolerance int
}

// Builder assembles the linked commit and reveal transactions. It is a pure
// function of (envelope, coins, fee rate, addresses): no wallet or network
// access happens here.
type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// SizeHint corrects the size model with the divergence observed on actually
// signed transactions, in vbytes. Used for the single internal rebuild after
// a size confirmation failure.
type SizeHint struct {
	CommitDelta int
	RevealDelta int
}

// Artifacts is the output of one Build pass: the unsigned commit packet, the
// reveal transaction wired to the commit's reveal-funding outpoint, and the
// fee accounting behind them.
type Artifacts struct {
	Commit   *psbt.Packet
	Reveal   *wire.MsgTx
	Selected []domain.Utxo

	// FundingValue is the reveal-funding output value: postage + reveal fee.
	FundingValue uint64
	CommitFee    uint64
	RevealFee    uint64
	Change       uint64

	// CommitVSize and RevealVSize are the fee-basis virtual sizes: the
	// carrier output's bytes are not part of them.
	CommitVSize int
	RevealVSize int

	// commitFullVSize includes the carrier output, it is what the signed
	// transaction is compared against.
	commitFullVSize int
}

// TotalFee is the fee paid across both transactions.
func (a *Artifacts) TotalFee() uint64 {
	return a.CommitFee + a.RevealFee
}

// Build selects coins and assembles both transactions at the given rate.
// A non-nil hint shifts the size model by the observed divergence.
func (b *Builder) Build(
	env *envelope.Envelope, utxos []domain.Utxo, feeRate uint64,
	destination, change btcutil.Address, hint *SizeHint,
) (*Artifacts, error) {
	estimator := newFeeEstimator(feeRate)
	if hint != nil {
		estimator.commitDelta = hint.CommitDelta
		estimator.revealDelta = hint.RevealDelta
	}

	destScript, err := txscript.PayToAddrScript(destination)
	if err != nil {
		return nil, domain.EncodingError.Wrap(err)
	}
	changeScript, err := txscript.PayToAddrScript(change)
	if err != nil {
		return nil, domain.EncodingError.Wrap(err)
	}

	revealEst, err := estimator.revealEstimator(env, destScript)
	if err != nil {
		return nil, domain.EncodingError.Wrap(err)
	}
	if weight := int(revealEst.Weight()); weight > b.cfg.MaxStandardTxWeight {
		return nil, domain.PayloadTooLarge.New(
			"reveal transaction weight %d exceeds standardness limit %d",
			weight, b.cfg.MaxStandardTxWeight,
		)
	}

	revealVSize := int(revealEst.VSize()) + estimator.revealDelta
	revealFee := estimator.fee(revealVSize)
	fundingValue := b.cfg.Postage + revealFee

	sel, err := b.selectCoins(utxos, fundingValue, estimator, env.PkScript, changeScript)
	if err != nil {
		return nil, err
	}

	commit, err := b.buildCommitPacket(sel, fundingValue, env.PkScript, changeScript)
	if err != nil {
		return nil, err
	}

	basisScripts := [][]byte{env.PkScript}
	if sel.withChange {
		basisScripts = append(basisScripts, changeScript)
	}
	commitVSize, err := estimator.commitVSize(sel.coins, basisScripts)
	if err != nil {
		return nil, err
	}
	commitFullVSize, err := estimator.commitVSize(
		sel.coins, append(basisScripts, carrierScript()),
	)
	if err != nil {
		return nil, err
	}

	reveal := wire.NewMsgTx(2)
	reveal.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: commit.UnsignedTx.TxHash(), Index: 0},
		Sequence:         rbfSequence,
	})
	reveal.AddTxOut(&wire.TxOut{
		Value:    int64(b.cfg.Postage),
		PkScript: destScript,
	})

	return &Artifacts{
		Commit:          commit,
		Reveal:          reveal,
		Selected:        sel.coins,
		FundingValue:    fundingValue,
		CommitFee:       sel.commitFee,
		RevealFee:       revealFee,
		Change:          sel.change,
		CommitVSize:     commitVSize,
		RevealVSize:     revealVSize,
		commitFullVSize: commitFullVSize,
	}, nil
}

func (b *Builder) buildCommitPacket(
	sel *selection, fundingValue uint64, fundingScript, changeScript []byte,
) (*psbt.Packet, error) {
	ptx, err := psbt.New(nil, nil, 2, 0, nil)
	if err != nil {
		return nil, err
	}

	for _, coin := range sel.coins {
		sighashType := txscript.SigHashAll
		if txscript.IsPayToTaproot(coin.Script) {
			sighashType = txscript.SigHashDefault
		}

		ptx.Inputs = append(ptx.Inputs, psbt.PInput{
			WitnessUtxo: &wire.TxOut{
				Value:    int64(coin.Value),
				PkScript: coin.Script,
			},
			SighashType: sighashType,
		})
		ptx.UnsignedTx.TxIn = append(ptx.UnsignedTx.TxIn, &wire.TxIn{
			PreviousOutPoint: coin.OutPoint,
			Sequence:         rbfSequence,
		})
	}

	// Output order is fixed: reveal funding at index 0 (the reveal spends
	// it), then the carrier, then change when economical.
	outputs := []*wire.TxOut{
		{Value: int64(fundingValue), PkScript: fundingScript},
		{Value: 0, PkScript: carrierScript()},
	}
	if sel.withChange {
		outputs = append(outputs, &wire.TxOut{
			Value:    int64(sel.change),
			PkScript: changeScript,
		})
	}

	for _, out := range outputs {
		ptx.UnsignedTx.TxOut = append(ptx.UnsignedTx.TxOut, out)
		ptx.Outputs = append(ptx.Outputs, psbt.POutput{})
	}

	return ptx, nil
}

// ConfirmSizes checks the signed transactions against the size model. The
// divergence, when any, is returned as the hint for the single rebuild.
func (b *Builder) ConfirmSizes(
	art *Artifacts, signedCommit, signedReveal *wire.MsgTx,
) (*SizeHint, error) {
	actualCommit := int(mempool.GetTxVirtualSize(btcutil.NewTx(signedCommit)))
	actualReveal := int(mempool.GetTxVirtualSize(btcutil.NewTx(signedReveal)))

	commitDelta := actualCommit - art.commitFullVSize
	revealDelta := actualReveal - art.RevealVSize

	if abs(commitDelta) <= b.cfg.VSizeTolerance && abs(revealDelta) <= b.cfg.VSizeTolerance {
		return nil, nil
	}

	return &SizeHint{CommitDelta: commitDelta, RevealDelta: revealDelta},
		domain.FeeMismatch.New(
			"estimated sizes diverged: commit %d vs %d, reveal %d vs %d vbytes",
			art.commitFullVSize, actualCommit, art.RevealVSize, actualReveal,
		)
}

func (b *Builder) minChange() uint64 {
	if b.cfg.MinChange > 0 {
		return b.cfg.MinChange
	}

	floor := chainfee.AbsoluteFeePerKwFloor.FeePerKVByte().
		FeeForVSize(lntypes.VByte(biggestInputSize))
	return uint64(math.Ceil(floor.ToUnit(btcutil.AmountSatoshi)))
}

func carrierScript() []byte {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData([]byte(carrierTag)).
		Script()
	if err != nil {
		// The carrier script is a 14-byte constant, building it cannot fail.
		panic(err)
	}
	return script
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
