package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

const (
	externalBranch = 0
	internalBranch = 1
)

type keyManager struct {
	// m/86'/coin'/0', taproot receive account
	taprootAccount *hdkeychain.ExtendedKey
	// m/84'/coin'/0', legacy segwit account kept for sweeping old funds
	segwitAccount *hdkeychain.ExtendedKey

	params *chaincfg.Params
}

// newKeyManager takes the seed and derives the BIP86 and BIP84 accounts.
func newKeyManager(seed []byte, params *chaincfg.Params) (*keyManager, error) {
	masterKey, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, err
	}

	cointypeIndex := uint32(0)
	if params.Name != chaincfg.MainNetParams.Name {
		cointypeIndex = 1
	}
	cointypeHardenedIndex := hdkeychain.HardenedKeyStart + cointypeIndex

	taprootPurposeKey, err := masterKey.Derive(hdkeychain.HardenedKeyStart + 86)
	if err != nil {
		return nil, err
	}
	bip86MasterKey, err := taprootPurposeKey.Derive(cointypeHardenedIndex)
	if err != nil {
		return nil, err
	}
	taprootAccount, err := bip86MasterKey.Derive(hdkeychain.HardenedKeyStart)
	if err != nil {
		return nil, err
	}

	segwitPurposeKey, err := masterKey.Derive(hdkeychain.HardenedKeyStart + 84)
	if err != nil {
		return nil, err
	}
	bip84MasterKey, err := segwitPurposeKey.Derive(cointypeHardenedIndex)
	if err != nil {
		return nil, err
	}
	segwitAccount, err := bip84MasterKey.Derive(hdkeychain.HardenedKeyStart)
	if err != nil {
		return nil, err
	}

	return &keyManager{taprootAccount, segwitAccount, params}, nil
}

func (k *keyManager) keyAt(
	account *hdkeychain.ExtendedKey, branch, index uint32,
) (*btcec.PrivateKey, error) {
	branchKey, err := account.Derive(branch)
	if err != nil {
		return nil, err
	}
	key, err := branchKey.Derive(index)
	if err != nil {
		return nil, err
	}

	return key.ECPrivKey()
}

// taprootKeyAt returns the untweaked internal private key at
// m/86'/coin'/0'/branch/index.
func (k *keyManager) taprootKeyAt(branch, index uint32) (*btcec.PrivateKey, error) {
	return k.keyAt(k.taprootAccount, branch, index)
}

func (k *keyManager) segwitKeyAt(branch, index uint32) (*btcec.PrivateKey, error) {
	return k.keyAt(k.segwitAccount, branch, index)
}

// taprootAddress returns the BIP86 address at the given branch and index,
// the internal key tweaked with an empty script tree.
func (k *keyManager) taprootAddress(branch, index uint32) (btcutil.Address, error) {
	privKey, err := k.taprootKeyAt(branch, index)
	if err != nil {
		return nil, err
	}
	defer privKey.Zero()

	outputKey := txscript.ComputeTaprootKeyNoScript(privKey.PubKey())

	return btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), k.params)
}

func (k *keyManager) segwitAddress(branch, index uint32) (btcutil.Address, error) {
	privKey, err := k.segwitKeyAt(branch, index)
	if err != nil {
		return nil, err
	}
	defer privKey.Zero()

	pubkeyHash := btcutil.Hash160(privKey.PubKey().SerializeCompressed())

	return btcutil.NewAddressWitnessPubKeyHash(pubkeyHash, k.params)
}
