package wallet

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"

	"github.com/bitfsorg/deadswitch-go/authority"
)

const (
	// BIP44 path constants.
	PurposeBIP44    = 44
	CoinTypeBitFS   = 236
	OwnerAccount    = 0
	ExternalChain   = 0
	MaxKeyIndex     = 1<<31 - 1
	Hardened        = 0x80000000
	ownerPathFormat = "m/44'/236'/%d'/0/%d"
)

// Wallet derives owner identities from a BIP39 seed.
type Wallet struct {
	masterKey *bip32.ExtendedKey
}

// KeyPair is a derived owner identity.
type KeyPair struct {
	PrivateKey *ec.PrivateKey    `json:"-"`
	PublicKey  *ec.PublicKey     `json:"public_key"`
	Address    authority.Address `json:"address"`
	Path       string            `json:"path"`
}

// NewWallet creates a Wallet from a BIP39 seed.
func NewWallet(seed []byte) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	masterKey, err := bip32.NewMaster(seed, &chaincfg.MainNet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Wallet{masterKey: masterKey}, nil
}

// DeriveOwnerKey derives the owner key at m/44'/236'/0'/0/index.
func (w *Wallet) DeriveOwnerKey(index uint32) (*KeyPair, error) {
	return w.DeriveKey(OwnerAccount, index)
}

// DeriveKey derives the key at m/44'/236'/account'/0/index.
func (w *Wallet) DeriveKey(account, index uint32) (*KeyPair, error) {
	if account > MaxKeyIndex || index > MaxKeyIndex {
		return nil, fmt.Errorf("%w: account %d index %d", ErrIndexOutOfRange, account, index)
	}

	key := w.masterKey
	steps := []struct {
		name  string
		child uint32
	}{
		{"purpose", PurposeBIP44 + Hardened},
		{"coin type", CoinTypeBitFS + Hardened},
		{"account", account + Hardened},
		{"chain", ExternalChain},
		{"index", index},
	}
	for _, st := range steps {
		next, err := key.Child(st.child)
		if err != nil {
			return nil, fmt.Errorf("%w: %s derivation: %w", ErrDerivationFailed, st.name, err)
		}
		key = next
	}

	return keyPairFrom(key, fmt.Sprintf(ownerPathFormat, account, index))
}

func keyPairFrom(extKey *bip32.ExtendedKey, path string) (*KeyPair, error) {
	privKey, err := extKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}
	pubKey := privKey.PubKey()
	addr, err := authority.AddressFromPubKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &KeyPair{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		Address:    addr,
		Path:       path,
	}, nil
}
