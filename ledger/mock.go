package ledger

import (
	"context"

	"github.com/bitfsorg/deadswitch-go/authority"
)

// MockLedger is a test double for Ledger.
// All function fields must be set before the corresponding method is called.
type MockLedger struct {
	RegisterFn      func(id authority.Address) (*Program, error)
	BalanceFn       func(ctx context.Context, addr authority.Address) (uint64, error)
	TokenBalanceFn  func(ctx context.Context, mint, owner authority.Address) (uint64, error)
	TransferFn      func(ctx context.Context, prog *Program, from authority.Seeds, to authority.Address, amount uint64) error
	TransferTokenFn func(ctx context.Context, prog *Program, mint authority.Address, from authority.Seeds, to authority.Address, amount uint64) error
	ReserveFn       func(size int) uint64
}

func (m *MockLedger) Register(id authority.Address) (*Program, error) {
	return m.RegisterFn(id)
}
func (m *MockLedger) Balance(ctx context.Context, addr authority.Address) (uint64, error) {
	return m.BalanceFn(ctx, addr)
}
func (m *MockLedger) TokenBalance(ctx context.Context, mint, owner authority.Address) (uint64, error) {
	return m.TokenBalanceFn(ctx, mint, owner)
}
func (m *MockLedger) Transfer(ctx context.Context, prog *Program, from authority.Seeds, to authority.Address, amount uint64) error {
	return m.TransferFn(ctx, prog, from, to, amount)
}
func (m *MockLedger) TransferToken(ctx context.Context, prog *Program, mint authority.Address, from authority.Seeds, to authority.Address, amount uint64) error {
	return m.TransferTokenFn(ctx, prog, mint, from, to, amount)
}
func (m *MockLedger) Reserve(size int) uint64 {
	return m.ReserveFn(size)
}
