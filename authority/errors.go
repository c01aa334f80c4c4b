package authority

import "errors"

var (
	// ErrInvalidAddress indicates an address string is not 20 hex-encoded bytes.
	ErrInvalidAddress = errors.New("authority: invalid address")

	// ErrInvalidSeed indicates a derivation seed is empty or too long.
	ErrInvalidSeed = errors.New("authority: invalid derivation seed")

	// ErrOnCurve indicates the derived point is a valid public key, so a private
	// key could exist for it. Such a bump must not be used.
	ErrOnCurve = errors.New("authority: derived point lies on the curve")

	// ErrNoViableBump indicates every bump value produced an on-curve point.
	ErrNoViableBump = errors.New("authority: no viable bump")

	// ErrSeedsMismatch indicates the presented seeds do not derive the claimed address.
	ErrSeedsMismatch = errors.New("authority: seeds do not derive address")

	// ErrNilPublicKey indicates a nil public key was provided.
	ErrNilPublicKey = errors.New("authority: public key is nil")
)
