package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/orddefi-labs/inscribed/internal/core/domain"
	"github.com/orddefi-labs/inscribed/internal/core/ports"
	"github.com/orddefi-labs/inscribed/internal/infrastructure/tx-builder/taproot"
	"github.com/orddefi-labs/inscribed/pkg/ordfi-lib/envelope"
	"github.com/orddefi-labs/inscribed/pkg/ordfi-lib/instruction"
)

type ServiceOptions struct {
	Wallet       ports.WalletService
	Broadcaster  ports.Broadcaster
	Builder      *taproot.Builder
	ChainParams  *chaincfg.Params
	EnvelopeOpts envelope.Options
}

// Service is the inscriber engine: one call takes an instruction document
// from raw JSON to a broadcast (or dry-run) commit/reveal pair.
type Service struct {
	ServiceOptions
}

func NewService(opts ServiceOptions) *Service {
	return &Service{opts}
}

// Inscribe runs the full pipeline for one instruction. The authentication
// rule for privileged instructions is enforced before any coin selection or
// network access happens.
func (s *Service) Inscribe(
	ctx context.Context, req domain.InscriptionRequest,
) (*domain.InscriptionResult, error) {
	logger := log.WithField("request_id", uuid.NewString())

	ins, err := instruction.Parse(req.RawInstruction)
	if err != nil {
		return nil, domain.SchemaError.Wrap(err)
	}
	logger = logger.WithField("op", ins.Op().String())

	if req.FeeRate == 0 {
		return nil, domain.SchemaError.New("fee rate must be positive")
	}

	destAddr, changeAddr, err := s.resolveAddresses(req)
	if err != nil {
		return nil, err
	}

	if ins.Privileged() && req.Origin != req.Destination {
		logger.Warn("rejecting privileged instruction with foreign destination")
		return nil, domain.AuthenticationMismatch.New(
			"%s requires the destination to equal the origin address", ins.Op(),
		)
	}

	payload, err := instruction.Encode(ins)
	if err != nil {
		return nil, domain.EncodingError.Wrap(err)
	}

	envelopeKey, err := envelope.GenerateInternalKey()
	if err != nil {
		return nil, domain.SigningError.Wrap(err)
	}
	defer envelopeKey.Zero()

	env, err := envelope.New(payload, envelopeKey.PubKey(), s.EnvelopeOpts)
	if err != nil {
		if errors.Is(err, envelope.ErrPayloadTooLarge) {
			return nil, domain.PayloadTooLarge.Wrap(err)
		}
		return nil, domain.EncodingError.Wrap(err)
	}

	utxos, err := s.Wallet.ListSpendableUtxos(ctx, req.Origin)
	if err != nil {
		return nil, fmt.Errorf("failed to list spendable outputs: %w", err)
	}

	art, err := s.Builder.Build(env, utxos, req.FeeRate, destAddr, changeAddr, nil)
	if err != nil {
		return nil, err
	}

	signed, err := s.signArtifacts(ctx, art, env, envelopeKey)
	if err != nil {
		return nil, err
	}

	// One rebuild when the signed sizes drift from the model, with the
	// observed divergence folded back into the estimate.
	hint, err := s.Builder.ConfirmSizes(art, signed.commitTx, art.Reveal)
	if err != nil {
		logger.WithError(err).Info("rebuilding with corrected sizes")

		art, err = s.Builder.Build(env, utxos, req.FeeRate, destAddr, changeAddr, hint)
		if err != nil {
			return nil, err
		}
		signed, err = s.signArtifacts(ctx, art, env, envelopeKey)
		if err != nil {
			return nil, err
		}
		if _, err := s.Builder.ConfirmSizes(art, signed.commitTx, art.Reveal); err != nil {
			return nil, err
		}
	}

	recoveryWIF, err := btcutil.NewWIF(envelopeKey, s.ChainParams, true)
	if err != nil {
		return nil, domain.SigningError.Wrap(err)
	}

	toLock := make([]wire.OutPoint, 0, len(art.Selected))
	for _, utxo := range art.Selected {
		toLock = append(toLock, utxo.OutPoint)
	}
	if err := s.Wallet.LockUtxos(ctx, toLock); err != nil {
		logger.WithError(err).Warn("failed to lock selected outpoints")
	}

	result := &domain.InscriptionResult{
		CommitHex:   signed.commitHex,
		RevealHex:   signed.revealHex,
		RecoveryKey: recoveryWIF.String(),
		TotalFees:   art.TotalFee(),
	}

	logger = logger.WithFields(log.Fields{
		"commit_vsize": art.CommitVSize,
		"reveal_vsize": art.RevealVSize,
		"total_fees":   art.TotalFee(),
	})

	if req.DryRun {
		logger.Info("dry run completed, nothing broadcast")
		return result, nil
	}

	commitTxid, err := s.Broadcaster.Broadcast(ctx, signed.commitHex)
	if err != nil {
		return nil, domain.BroadcastError.Wrap(err)
	}
	result.CommitTxid = commitTxid

	revealTxid, err := s.Broadcaster.Broadcast(ctx, signed.revealHex)
	if err != nil {
		// The commit is on the network but the reveal is not. Surface what
		// the caller needs to retry the reveal without rebuilding.
		return nil, domain.BroadcastError.Wrap(err).WithMetadata(map[string]string{
			"commit_txid": commitTxid,
			"reveal_hex":  signed.revealHex,
		})
	}
	result.RevealTxid = revealTxid
	result.RevealHex = ""

	logger.WithFields(log.Fields{
		"commit": commitTxid,
		"reveal": revealTxid,
	}).Info("inscription broadcast")

	return result, nil
}

// CommitAddress derives the taproot address an instruction would commit to,
// without touching coins or the network. The returned WIF controls the
// generated envelope key and must be kept if the address is funded manually.
func (s *Service) CommitAddress(rawInstruction []byte) (string, string, error) {
	ins, err := instruction.Parse(rawInstruction)
	if err != nil {
		return "", "", domain.SchemaError.Wrap(err)
	}

	payload, err := instruction.Encode(ins)
	if err != nil {
		return "", "", domain.EncodingError.Wrap(err)
	}

	envelopeKey, err := envelope.GenerateInternalKey()
	if err != nil {
		return "", "", domain.SigningError.Wrap(err)
	}
	defer envelopeKey.Zero()

	env, err := envelope.New(payload, envelopeKey.PubKey(), s.EnvelopeOpts)
	if err != nil {
		if errors.Is(err, envelope.ErrPayloadTooLarge) {
			return "", "", domain.PayloadTooLarge.Wrap(err)
		}
		return "", "", domain.EncodingError.Wrap(err)
	}

	addr, err := env.Address(s.ChainParams)
	if err != nil {
		return "", "", domain.EncodingError.Wrap(err)
	}

	recoveryWIF, err := btcutil.NewWIF(envelopeKey, s.ChainParams, true)
	if err != nil {
		return "", "", domain.SigningError.Wrap(err)
	}

	return addr.String(), recoveryWIF.String(), nil
}

type signedPair struct {
	commitTx  *wire.MsgTx
	commitHex string
	revealHex string
}

// signArtifacts signs every commit input through the wallet, finalizes the
// packet and attaches the script-path witness to the reveal.
func (s *Service) signArtifacts(
	ctx context.Context, art *taproot.Artifacts,
	env *envelope.Envelope, envelopeKey *btcec.PrivateKey,
) (*signedPair, error) {
	for i := range art.Commit.Inputs {
		if err := s.Wallet.SignKeyPath(ctx, art.Commit, i); err != nil {
			return nil, domain.SigningError.Wrap(err)
		}
	}

	commitTx, commitHex, err := taproot.FinalizeCommit(art.Commit)
	if err != nil {
		return nil, domain.SigningError.Wrap(err)
	}

	prevouts := txscript.NewCannedPrevOutputFetcher(env.PkScript, int64(art.FundingValue))
	sig, err := s.Wallet.SignScriptPath(ctx, envelopeKey, art.Reveal, 0, prevouts, env.TapLeaf())
	if err != nil {
		return nil, domain.SigningError.Wrap(err)
	}
	art.Reveal.TxIn[0].Witness = env.RevealWitness(sig)

	revealHex, err := taproot.SerializeTx(art.Reveal)
	if err != nil {
		return nil, err
	}

	return &signedPair{
		commitTx:  commitTx,
		commitHex: commitHex,
		revealHex: revealHex,
	}, nil
}

// resolveAddresses decodes and network-checks the origin, destination and
// change addresses. An empty change address falls back to the origin.
func (s *Service) resolveAddresses(
	req domain.InscriptionRequest,
) (destAddr, changeAddr btcutil.Address, err error) {
	if _, err := s.decodeAddress("origin", req.Origin); err != nil {
		return nil, nil, err
	}

	destAddr, err = s.decodeAddress("destination", req.Destination)
	if err != nil {
		return nil, nil, err
	}

	change := req.Change
	if change == "" {
		change = req.Origin
	}
	changeAddr, err = s.decodeAddress("change", change)
	if err != nil {
		return nil, nil, err
	}

	return destAddr, changeAddr, nil
}

func (s *Service) decodeAddress(field, address string) (btcutil.Address, error) {
	if address == "" {
		return nil, domain.SchemaError.New("missing %s address", field)
	}

	addr, err := btcutil.DecodeAddress(address, s.ChainParams)
	if err != nil {
		return nil, domain.SchemaError.New("invalid %s address %s: %s", field, address, err)
	}
	if !addr.IsForNet(s.ChainParams) {
		return nil, domain.SchemaError.New(
			"%s address %s is not valid for network %s", field, address, s.ChainParams.Name,
		)
	}

	return addr, nil
}
