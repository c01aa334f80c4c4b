package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitfsorg/deadswitch-go/authority"
)

type tokenKey struct {
	mint  authority.Address
	owner authority.Address
}

// MemLedger is an in-memory Ledger for tests and simulations.
type MemLedger struct {
	mu     sync.Mutex
	rent   Rent
	native map[authority.Address]uint64
	tokens map[tokenKey]uint64
	progs  programs
}

// Compile-time interface checks.
var (
	_ Ledger = (*MemLedger)(nil)
	_ Funder = (*MemLedger)(nil)
)

// NewMemLedger creates an empty in-memory ledger using rent for reserves.
func NewMemLedger(rent Rent) *MemLedger {
	return &MemLedger{
		rent:   rent,
		native: make(map[authority.Address]uint64),
		tokens: make(map[tokenKey]uint64),
	}
}

// Balance returns the native balance of addr.
func (l *MemLedger) Balance(_ context.Context, addr authority.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.native[addr], nil
}

// TokenBalance returns owner's balance of mint.
func (l *MemLedger) TokenBalance(_ context.Context, mint, owner authority.Address) (uint64, error) {
	if mint.IsZero() {
		return 0, ErrInvalidMint
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens[tokenKey{mint, owner}], nil
}

// Transfer moves native currency out of the account derived from seeds.
// prog must have been issued by this ledger.
func (l *MemLedger) Transfer(ctx context.Context, prog *Program, from authority.Seeds, to authority.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := l.progs.source(prog, from, amount)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return move(l.native, src, to, amount)
}

// TransferToken moves tokens of mint out of the account derived from seeds.
func (l *MemLedger) TransferToken(ctx context.Context, prog *Program, mint authority.Address, from authority.Seeds, to authority.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mint.IsZero() {
		return ErrInvalidMint
	}
	src, err := l.progs.source(prog, from, amount)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return move(l.tokens, tokenKey{mint, src}, tokenKey{mint, to}, amount)
}

func move[K comparable](balances map[K]uint64, from, to K, amount uint64) error {
	fromBal, err := debit(balances[from], amount)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	toBal, err := credit(balances[to], amount)
	if err != nil {
		return err
	}
	balances[from] = fromBal
	balances[to] = toBal
	return nil
}

// Register issues the transfer authority for program identity id.
func (l *MemLedger) Register(id authority.Address) (*Program, error) {
	return l.progs.register(id)
}

// Reserve returns the retained balance for an account of size bytes.
func (l *MemLedger) Reserve(size int) uint64 {
	return l.rent.Reserve(size)
}

// Credit adds amount to addr's native balance.
func (l *MemLedger) Credit(_ context.Context, addr authority.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, err := credit(l.native[addr], amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", addr, err)
	}
	l.native[addr] = bal
	return nil
}

// CreditToken adds amount of mint to owner's token balance.
func (l *MemLedger) CreditToken(_ context.Context, mint, owner authority.Address, amount uint64) error {
	if mint.IsZero() {
		return ErrInvalidMint
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := tokenKey{mint, owner}
	bal, err := credit(l.tokens[k], amount)
	if err != nil {
		return fmt.Errorf("credit %s token %s: %w", owner, mint, err)
	}
	l.tokens[k] = bal
	return nil
}
