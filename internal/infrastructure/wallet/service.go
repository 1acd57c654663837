package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
	"github.com/tyler-smith/go-bip39"

	"github.com/orddefi-labs/inscribed/internal/core/domain"
	"github.com/orddefi-labs/inscribed/internal/core/ports"
)

var ErrWalletLocked = errors.New("wallet is locked")

// defaultLookahead is how many addresses per branch are derived and indexed
// on unlock. Funds on higher indexes become visible after NewAddress extends
// the window past them.
const defaultLookahead = uint32(100)

type ServiceOptions struct {
	SeedRepo ports.SeedRepository
	Cypher   ports.Cypher
	Scanner  ports.BlockchainScanner
	Network  *chaincfg.Params
	// Lookahead overrides defaultLookahead when > 0.
	Lookahead uint32
}

// Service implements ports.WalletService plus the lifecycle operations the
// CLI drives directly. Keys never leave this package except for the
// caller-owned ephemeral envelope key passed into SignScriptPath.
type Service struct {
	ServiceOptions

	locker outpointLocker

	mu     sync.Mutex
	keyMgr *keyManager
	// derived keys indexed by hex pkScript, rebuilt on every unlock
	keysByScript map[string]keyRef
	// addresses in derivation order, external branch only
	addresses []string
	nextIndex uint32
}

// keyRef locates a derived key without holding the key material itself.
type keyRef struct {
	taproot bool
	branch  uint32
	index   uint32
}

func NewService(opts ServiceOptions) *Service {
	if opts.Lookahead == 0 {
		opts.Lookahead = defaultLookahead
	}

	return &Service{
		ServiceOptions: opts,
		locker:         newInmemoryOutpointLocker(time.Minute),
		keysByScript:   make(map[string]keyRef),
	}
}

func (s *Service) GenSeed(ctx context.Context) (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// Create encrypts the mnemonic's seed under password, persists it and leaves
// the wallet unlocked.
func (s *Service) Create(ctx context.Context, mnemonic, password string) error {
	if s.SeedRepo.IsInitialized(ctx) {
		return fmt.Errorf("wallet already initialized")
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	encryptedSeed, err := s.Cypher.Encrypt(ctx, seed, password)
	if err != nil {
		return err
	}
	if err := s.SeedRepo.SetEncryptedSeed(ctx, encryptedSeed); err != nil {
		return err
	}

	return s.load(seed)
}

func (s *Service) Unlock(ctx context.Context, password string) error {
	s.mu.Lock()
	unlocked := s.keyMgr != nil
	s.mu.Unlock()
	if unlocked {
		return nil
	}

	encryptedSeed, err := s.SeedRepo.GetEncryptedSeed(ctx)
	if err != nil {
		return err
	}
	seed, err := s.Cypher.Decrypt(ctx, encryptedSeed, password)
	if err != nil {
		return err
	}

	if err := s.load(seed); err != nil {
		return err
	}

	log.Info("wallet unlocked")
	return nil
}

func (s *Service) Lock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyMgr == nil {
		return fmt.Errorf("wallet is already locked")
	}

	s.keyMgr = nil
	s.keysByScript = make(map[string]keyRef)
	s.addresses = nil
	s.nextIndex = 0
	return nil
}

type Status struct {
	IsInitialized bool
	IsUnlocked    bool
}

func (s Status) String() string {
	switch {
	case !s.IsInitialized:
		return "uninitialized"
	case !s.IsUnlocked:
		return "locked"
	default:
		return "unlocked"
	}
}

func (s *Service) Status(ctx context.Context) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		IsInitialized: s.SeedRepo.IsInitialized(ctx),
		IsUnlocked:    s.keyMgr != nil,
	}
}

// NewAddress derives the next taproot receive address past the lookahead
// window, extending the script index with it.
func (s *Service) NewAddress(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyMgr == nil {
		return "", ErrWalletLocked
	}

	index := s.nextIndex
	addr, err := s.keyMgr.taprootAddress(externalBranch, index)
	if err != nil {
		return "", err
	}
	if err := s.indexAddress(addr.String(), keyRef{taproot: true, branch: externalBranch, index: index}); err != nil {
		return "", err
	}

	s.nextIndex++
	s.addresses = append(s.addresses, addr.String())
	return addr.String(), nil
}

// Addresses returns every derived external taproot address, oldest first.
func (s *Service) Addresses(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyMgr == nil {
		return nil, ErrWalletLocked
	}

	addresses := make([]string, len(s.addresses))
	copy(addresses, s.addresses)
	return addresses, nil
}

// Balance sums the spendable and locked output values across all derived
// addresses.
func (s *Service) Balance(ctx context.Context) (uint64, uint64, error) {
	addresses, err := s.Addresses(ctx)
	if err != nil {
		return 0, 0, err
	}

	lockedOutpoints, err := s.locker.Get(ctx)
	if err != nil {
		return 0, 0, err
	}

	available := uint64(0)
	locked := uint64(0)
	for _, addr := range addresses {
		utxos, err := s.Scanner.GetAddressUtxos(ctx, addr)
		if err != nil {
			return 0, 0, err
		}
		for _, utxo := range utxos {
			if _, isLocked := lockedOutpoints[utxo.OutPoint]; isLocked {
				locked += utxo.Value
			} else {
				available += utxo.Value
			}
		}
	}

	return available, locked, nil
}

func (s *Service) ListSpendableUtxos(ctx context.Context, address string) ([]domain.Utxo, error) {
	s.mu.Lock()
	unlocked := s.keyMgr != nil
	s.mu.Unlock()
	if !unlocked {
		return nil, ErrWalletLocked
	}

	utxos, err := s.Scanner.GetAddressUtxos(ctx, address)
	if err != nil {
		return nil, err
	}

	lockedOutpoints, err := s.locker.Get(ctx)
	if err != nil {
		return nil, err
	}

	spendable := make([]domain.Utxo, 0, len(utxos))
	for _, utxo := range utxos {
		if _, isLocked := lockedOutpoints[utxo.OutPoint]; isLocked {
			continue
		}
		spendable = append(spendable, utxo)
	}

	return spendable, nil
}

func (s *Service) LockUtxos(ctx context.Context, outpoints []wire.OutPoint) error {
	return s.locker.Lock(ctx, outpoints...)
}

// SignKeyPath signs the given input of the packet with the wallet key owning
// its witness utxo. Taproot inputs get a key-path schnorr signature, p2wpkh
// inputs an ecdsa partial signature.
func (s *Service) SignKeyPath(ctx context.Context, packet *psbt.Packet, inputIndex int) error {
	in := packet.Inputs[inputIndex]
	if in.WitnessUtxo == nil {
		return fmt.Errorf("missing witness utxo for input %d", inputIndex)
	}

	privKey, err := s.scriptPrivateKey(in.WitnessUtxo.PkScript)
	if err != nil {
		return err
	}
	defer privKey.Zero()

	prevouts := make(map[wire.OutPoint]*wire.TxOut)
	for i, pin := range packet.Inputs {
		prevouts[packet.UnsignedTx.TxIn[i].PreviousOutPoint] = pin.WitnessUtxo
	}
	prevoutFetcher := txscript.NewMultiPrevOutFetcher(prevouts)
	txSigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, prevoutFetcher)

	if txscript.IsPayToTaproot(in.WitnessUtxo.PkScript) {
		signature, err := txscript.RawTxInTaprootSignature(
			packet.UnsignedTx, txSigHashes, inputIndex,
			in.WitnessUtxo.Value, in.WitnessUtxo.PkScript,
			in.TaprootMerkleRoot, in.SighashType, privKey,
		)
		if err != nil {
			return err
		}

		packet.Inputs[inputIndex].TaprootKeySpendSig = signature
		return nil
	}

	signature, err := txscript.RawTxInWitnessSignature(
		packet.UnsignedTx, txSigHashes, inputIndex,
		in.WitnessUtxo.Value, in.WitnessUtxo.PkScript,
		in.SighashType, privKey,
	)
	if err != nil {
		return err
	}

	packet.Inputs[inputIndex].PartialSigs = append(
		packet.Inputs[inputIndex].PartialSigs, &psbt.PartialSig{
			PubKey:    privKey.PubKey().SerializeCompressed(),
			Signature: signature,
		},
	)
	return nil
}

// SignScriptPath signs a tapscript leaf spend with the caller-supplied key.
// The wallet does not retain the key, the caller zeroes it after use.
func (s *Service) SignScriptPath(
	ctx context.Context, key *btcec.PrivateKey, tx *wire.MsgTx, inputIndex int,
	prevouts txscript.PrevOutputFetcher, leaf txscript.TapLeaf,
) ([]byte, error) {
	prevout := prevouts.FetchPrevOutput(tx.TxIn[inputIndex].PreviousOutPoint)
	if prevout == nil {
		return nil, fmt.Errorf("missing prevout for input %d", inputIndex)
	}

	txSigHashes := txscript.NewTxSigHashes(tx, prevouts)

	return txscript.RawTxInTapscriptSignature(
		tx, txSigHashes, inputIndex,
		prevout.Value, prevout.PkScript,
		leaf, txscript.SigHashDefault, key,
	)
}

func (s *Service) Close() {
	if err := s.SeedRepo.Close(); err != nil {
		log.WithError(err).Warn("failed to close seed store")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyMgr = nil
	s.keysByScript = make(map[string]keyRef)
}

// load builds the key manager and the script index over the lookahead window.
func (s *Service) load(seed []byte) error {
	keyMgr, err := newKeyManager(seed, s.Network)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.keyMgr = keyMgr
	s.keysByScript = make(map[string]keyRef)
	s.addresses = s.addresses[:0]

	for branch := uint32(externalBranch); branch <= internalBranch; branch++ {
		for index := uint32(0); index < s.Lookahead; index++ {
			taprootAddr, err := keyMgr.taprootAddress(branch, index)
			if err != nil {
				return err
			}
			if err := s.indexAddress(taprootAddr.String(), keyRef{taproot: true, branch: branch, index: index}); err != nil {
				return err
			}
			if branch == externalBranch {
				s.addresses = append(s.addresses, taprootAddr.String())
			}

			segwitAddr, err := keyMgr.segwitAddress(branch, index)
			if err != nil {
				return err
			}
			if err := s.indexAddress(segwitAddr.String(), keyRef{taproot: false, branch: branch, index: index}); err != nil {
				return err
			}
		}
	}

	s.nextIndex = s.Lookahead
	return nil
}

// indexAddress maps the address' pkScript to the derivation locator.
// Callers hold s.mu.
func (s *Service) indexAddress(address string, ref keyRef) error {
	addr, err := btcutil.DecodeAddress(address, s.Network)
	if err != nil {
		return err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return err
	}

	s.keysByScript[hex.EncodeToString(script)] = ref
	return nil
}

// scriptPrivateKey re-derives the key owning the given pkScript.
func (s *Service) scriptPrivateKey(pkScript []byte) (*btcec.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyMgr == nil {
		return nil, ErrWalletLocked
	}

	ref, ok := s.keysByScript[hex.EncodeToString(pkScript)]
	if !ok {
		return nil, fmt.Errorf("no wallet key owns script %x", pkScript)
	}

	if ref.taproot {
		return s.keyMgr.taprootKeyAt(ref.branch, ref.index)
	}
	return s.keyMgr.segwitKeyAt(ref.branch, ref.index)
}
