package ledger

import (
	"fmt"
	"sync"

	"github.com/bitfsorg/deadswitch-go/authority"
)

// Program is the transfer authority a ledger issues to one program identity.
// Accounts derived under that identity can only be debited by presenting it.
type Program struct {
	id authority.Address
}

// ID returns the program identity the authority was issued for.
func (p *Program) ID() authority.Address { return p.id }

// programs records the authorities a ledger has issued. Registration lasts for
// the life of the ledger value and the first registration of an identity wins.
type programs struct {
	mu     sync.Mutex
	issued map[authority.Address]*Program
}

func (r *programs) register(id authority.Address) (*Program, error) {
	if id.IsZero() {
		return nil, ErrInvalidProgram
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issued[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrProgramRegistered, id)
	}
	if r.issued == nil {
		r.issued = make(map[authority.Address]*Program)
	}
	p := &Program{id: id}
	r.issued[id] = p
	return p, nil
}

// source authorizes and resolves the debit side of a transfer.
func (r *programs) source(prog *Program, from authority.Seeds, amount uint64) (authority.Address, error) {
	if amount == 0 {
		return authority.Address{}, ErrInvalidAmount
	}
	if prog == nil {
		return authority.Address{}, fmt.Errorf("%w: no program authority", ErrBadAuthority)
	}
	r.mu.Lock()
	issued := r.issued[prog.id] == prog
	r.mu.Unlock()
	if !issued {
		return authority.Address{}, fmt.Errorf("%w: program %s not registered with this ledger", ErrBadAuthority, prog.id)
	}
	if from.Program != prog.id {
		return authority.Address{}, fmt.Errorf("%w: %s belongs to program %s", ErrBadAuthority, from, from.Program)
	}
	addr, err := from.Address()
	if err != nil {
		return authority.Address{}, fmt.Errorf("%w: %s: %w", ErrBadAuthority, from, err)
	}
	return addr, nil
}
