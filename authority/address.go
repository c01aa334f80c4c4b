// Package authority implements the deterministic addressing scheme used by
// switch records and escrows.
//
// A derived address is computed from a fixed domain tag, the identity of the
// program that controls it, the owner address, the switch identifier and a
// one-byte bump:
//
//	point   = 0x02 || SHA256("deadswitch/derive" || program || len(tag) || tag || owner || len(id) || id || bump)
//	address = HASH160(point)
//
// The bump is chosen so that point is NOT a valid compressed secp256k1 public key.
// No private key can exist for such an address. Seeds are public, so they only
// name an account; a ledger debits it only for the program whose identity the
// seeds carry.
package authority

import (
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
)

// AddressLen is the length of an address in bytes.
const AddressLen = 20

// Address identifies a principal or a derived account on the ledger.
// For principals it is HASH160 of the compressed public key.
type Address [AddressLen]byte

// String returns the hex encoding of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool {
	return a == Address{}
}

// ParseAddress decodes a 40-character hex string into an Address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(b) != AddressLen {
		return a, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLen, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// ProgramID returns the identity of the program called name.
func ProgramID(name string) Address {
	var a Address
	copy(a[:], bsvhash.Hash160([]byte(programDomain+name)))
	return a
}

// AddressFromPubKey computes HASH160(compressed pubkey).
func AddressFromPubKey(pub *ec.PublicKey) (Address, error) {
	var a Address
	if pub == nil {
		return a, ErrNilPublicKey
	}
	copy(a[:], bsvhash.Hash160(pub.Compressed()))
	return a, nil
}

// AddressFromPubKeyBytes parses a compressed public key and returns its address.
func AddressFromPubKeyBytes(b []byte) (Address, *ec.PublicKey, error) {
	pub, err := ec.PublicKeyFromBytes(b)
	if err != nil {
		return Address{}, nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	addr, err := AddressFromPubKey(pub)
	return addr, pub, err
}
