package authority

import (
	"crypto/sha256"
	"errors"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
)

const (
	// SwitchSeed tags the address of a switch record.
	SwitchSeed = "switch"

	// EscrowSeed tags the address of a switch's escrow account.
	EscrowSeed = "escrow"

	// MaxSeedLen bounds the tag and switch identifier seeds.
	MaxSeedLen = 32

	derivationDomain = "deadswitch/derive"
	programDomain    = "deadswitch/program/"
)

// Seeds are the inputs a derived address is computed from.
type Seeds struct {
	Program  Address // controlling program
	Tag      string
	Owner    Address
	SwitchID string
	Bump     uint8
}

// Address derives the address for these seeds.
func (s Seeds) Address() (Address, error) {
	return CreateAddress(s)
}

// String returns a human-readable form for logs.
func (s Seeds) String() string {
	return fmt.Sprintf("%s:%s/%s/%s#%d", s.Program, s.Tag, s.Owner, s.SwitchID, s.Bump)
}

// derivedPoint builds the 33-byte candidate point for the given seeds.
func derivedPoint(s Seeds) ([]byte, error) {
	if len(s.Tag) == 0 || len(s.Tag) > MaxSeedLen {
		return nil, fmt.Errorf("%w: tag length %d", ErrInvalidSeed, len(s.Tag))
	}
	if len(s.SwitchID) > MaxSeedLen {
		return nil, fmt.Errorf("%w: switch id length %d", ErrInvalidSeed, len(s.SwitchID))
	}

	h := sha256.New()
	h.Write([]byte(derivationDomain))
	h.Write(s.Program[:])
	h.Write([]byte{byte(len(s.Tag))})
	h.Write([]byte(s.Tag))
	h.Write(s.Owner[:])
	h.Write([]byte{byte(len(s.SwitchID))})
	h.Write([]byte(s.SwitchID))
	h.Write([]byte{s.Bump})

	point := make([]byte, 0, 33)
	point = append(point, 0x02)
	return h.Sum(point), nil
}

// CreateAddress derives the address for seeds with an explicit bump.
// Returns ErrOnCurve if the bump yields a point with a possible private key.
func CreateAddress(s Seeds) (Address, error) {
	point, err := derivedPoint(s)
	if err != nil {
		return Address{}, err
	}
	if _, err := ec.PublicKeyFromBytes(point); err == nil {
		return Address{}, fmt.Errorf("%w: bump %d", ErrOnCurve, s.Bump)
	}

	var a Address
	copy(a[:], bsvhash.Hash160(point))
	return a, nil
}

// FindAddress searches bumps from 255 downwards and returns the first address
// whose point is off the curve, along with that bump. The bump of s is ignored.
func FindAddress(s Seeds) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		s.Bump = uint8(bump)
		addr, err := CreateAddress(s)
		if err == nil {
			return addr, s.Bump, nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// Verify checks that seeds derive addr.
func Verify(addr Address, s Seeds) error {
	derived, err := CreateAddress(s)
	if err != nil {
		return err
	}
	if derived != addr {
		return fmt.Errorf("%w: %s derives %s, not %s", ErrSeedsMismatch, s, derived, addr)
	}
	return nil
}
