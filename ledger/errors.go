package ledger

import "errors"

var (
	// ErrInsufficientBalance indicates the source account cannot cover the transfer.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrInvalidAmount indicates a zero transfer or credit.
	ErrInvalidAmount = errors.New("ledger: invalid amount")

	// ErrBalanceOverflow indicates a credit would overflow the destination balance.
	ErrBalanceOverflow = errors.New("ledger: balance overflow")

	// ErrBadAuthority indicates a transfer was not authorized: no program
	// authority, one this ledger did not issue, seeds of another program, or
	// seeds that derive no valid address.
	ErrBadAuthority = errors.New("ledger: bad signing authority")

	// ErrInvalidProgram indicates a zero program identity.
	ErrInvalidProgram = errors.New("ledger: invalid program identity")

	// ErrProgramRegistered indicates the program identity already has an authority.
	ErrProgramRegistered = errors.New("ledger: program already registered")

	// ErrInvalidMint indicates a zero token mint.
	ErrInvalidMint = errors.New("ledger: invalid token mint")
)
