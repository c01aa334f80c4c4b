// Package ledger defines the balance and transfer capabilities the switch
// processor runs against, plus an in-memory and a bbolt-backed reference
// ledger. Neither is a currency implementation: they track balances and move
// them, nothing more.
//
// Derived accounts have no private key. A program registers its identity once
// and receives a Program authority; a transfer presents that authority with
// the seeds of the account to debit. The ledger checks that the seeds were
// derived under the presenting program, re-derives the address and debits it.
// Seeds alone are public and authorize nothing.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bitfsorg/deadswitch-go/authority"
)

// Ledger moves native currency and tokens between accounts.
type Ledger interface {
	// Register issues the transfer authority for the program identity id.
	// Each identity can be registered once per ledger.
	Register(id authority.Address) (*Program, error)

	// Balance returns the native balance of addr.
	Balance(ctx context.Context, addr authority.Address) (uint64, error)

	// TokenBalance returns owner's balance of the token of mint.
	TokenBalance(ctx context.Context, mint, owner authority.Address) (uint64, error)

	// Transfer moves amount of native currency from the account derived from
	// seeds to to. prog must be the authority issued for from.Program. The
	// balance check and debit are atomic.
	Transfer(ctx context.Context, prog *Program, from authority.Seeds, to authority.Address, amount uint64) error

	// TransferToken moves amount of the token of mint from the account
	// derived from seeds to to.
	TransferToken(ctx context.Context, prog *Program, mint authority.Address, from authority.Seeds, to authority.Address, amount uint64) error

	// Reserve returns the minimum native balance an account holding size
	// bytes of data must retain.
	Reserve(size int) uint64
}

// Funder credits accounts from outside the system. Used by tooling and tests
// to fund escrows.
type Funder interface {
	Credit(ctx context.Context, addr authority.Address, amount uint64) error
	CreditToken(ctx context.Context, mint, owner authority.Address, amount uint64) error
}

// Rent computes the retained balance of a data-holding account as
// (Overhead + size) * PerByte.
type Rent struct {
	PerByte  uint64
	Overhead uint64
}

// DefaultRent is the reserve schedule used unless configured otherwise.
var DefaultRent = Rent{PerByte: 6960, Overhead: 128}

// Reserve returns the retained balance for size bytes, saturating at MaxUint64.
func (r Rent) Reserve(size int) uint64 {
	if size < 0 {
		size = 0
	}
	units := r.Overhead + uint64(size)
	if r.PerByte != 0 && units > math.MaxUint64/r.PerByte {
		return math.MaxUint64
	}
	return units * r.PerByte
}

// Clock supplies the current time in unix seconds.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current unix time.
func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a settable clock for tests and simulations.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock returns a clock reading now.
func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the current reading.
func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now.
func (c *ManualClock) Set(now int64) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Advance moves the clock forward by d seconds and returns the new reading.
func (c *ManualClock) Advance(d int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

func credit(balance, amount uint64) (uint64, error) {
	if balance > math.MaxUint64-amount {
		return 0, fmt.Errorf("%w: %d + %d", ErrBalanceOverflow, balance, amount)
	}
	return balance + amount, nil
}

func debit(balance, amount uint64) (uint64, error) {
	if balance < amount {
		return 0, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balance, amount)
	}
	return balance - amount, nil
}
