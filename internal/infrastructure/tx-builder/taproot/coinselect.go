package taproot

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/orddefi-labs/inscribed/internal/core/domain"
)

// sortSpendable orders candidate outputs largest-first with a deterministic
// tie-break on outpoint, so a given UTXO set and fee rate always produce the
// same selection and therefore the same fees.
func sortSpendable(utxos []domain.Utxo) []domain.Utxo {
	sorted := make([]domain.Utxo, len(utxos))
	copy(sorted, utxos)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		if sorted[i].OutPoint.Hash != sorted[j].OutPoint.Hash {
			return sorted[i].OutPoint.Hash.String() < sorted[j].OutPoint.Hash.String()
		}
		return sorted[i].OutPoint.Index < sorted[j].OutPoint.Index
	})

	return sorted
}

type selection struct {
	coins []domain.Utxo
	// total is the cumulative value of the selected coins.
	total uint64
	// commitFee is the commit transaction fee. When the remainder was folded
	// into the fee it exceeds the rate-implied fee by that remainder.
	commitFee uint64
	// change is the remainder routed to the change output, zero when folded.
	change uint64
	// withChange reports whether a change output is part of the commit.
	withChange bool
}

// selectCoins accumulates spendable outputs largest-first until their total
// value covers the reveal-funding output plus the commit fee. The commit fee
// grows with every added input, so coverage is re-checked per step against
// the fee of the current input count. A remainder below minChange is folded
// into the fee instead of creating an uneconomical output.
func (b *Builder) selectCoins(
	utxos []domain.Utxo, fundingValue uint64, estimator feeEstimator,
	fundingScript, changeScript []byte,
) (*selection, error) {
	sorted := sortSpendable(utxos)

	coins := make([]domain.Utxo, 0, len(sorted))
	total := uint64(0)

	for _, utxo := range sorted {
		coins = append(coins, utxo)
		total += utxo.Value

		vsizeWithChange, err := estimator.commitVSize(
			coins, [][]byte{fundingScript, changeScript},
		)
		if err != nil {
			return nil, err
		}
		feeWithChange := estimator.fee(vsizeWithChange)

		if total < fundingValue+feeWithChange {
			continue
		}

		remainder := total - fundingValue - feeWithChange
		if remainder >= b.minChange() {
			log.Debugf("selected %d coins worth %d, change %d", len(coins), total, remainder)
			return &selection{
				coins:      coins,
				total:      total,
				commitFee:  feeWithChange,
				change:     remainder,
				withChange: true,
			}, nil
		}

		vsizeNoChange, err := estimator.commitVSize(coins, [][]byte{fundingScript})
		if err != nil {
			return nil, err
		}
		feeNoChange := estimator.fee(vsizeNoChange)

		if total >= fundingValue+feeNoChange {
			log.Debugf("selected %d coins worth %d, remainder %d folded into fee",
				len(coins), total, total-fundingValue-feeNoChange)
			return &selection{
				coins:     coins,
				total:     total,
				commitFee: total - fundingValue,
			}, nil
		}
	}

	return nil, domain.InsufficientFunds.New(
		"%d spendable outputs worth %d sats cannot cover %d sats plus fees",
		len(utxos), total, fundingValue,
	)
}
