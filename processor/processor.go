// Package processor executes switch instructions against a store and a ledger.
//
// Every instruction runs under a lock on its switch's record address, so
// operations on one switch are serialized while distinct switches proceed in
// parallel. Status changes are written to the store before any funds move.
//
// Owner instructions on an existing switch carry the record's nonce, which is
// advanced when the instruction commits, so a signed instruction executes at
// most once. Escrow transfers go through the ledger authority the processor
// registers for deadman.ProgramID.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15"

	"github.com/bitfsorg/deadswitch-go/authority"
	"github.com/bitfsorg/deadswitch-go/deadman"
	"github.com/bitfsorg/deadswitch-go/ledger"
	"github.com/bitfsorg/deadswitch-go/store"
)

// escrowDataSize is the data held by an escrow account. Escrows hold none, so
// their reserve is the bare account minimum.
const escrowDataSize = 0

// Receipt describes the outcome of an executed instruction.
type Receipt struct {
	InstructionID uuid.UUID
	Op            Op
	Record        authority.Address
	Escrow        authority.Address
	Status        deadman.Status
	Deadline      int64
	Recipient     authority.Address // distribute and withdraw
	Asset         deadman.Asset
	Amount        uint64
	Closed        bool   // record deleted after an allocation-model cancel
	Nonce         uint64 // nonce the next owner instruction must carry
}

// Processor executes instructions.
type Processor struct {
	store  store.SwitchStore
	ledger ledger.Ledger
	prog   *ledger.Program
	clock  ledger.Clock
	log    log15.Logger

	locksMu sync.Mutex
	locks   map[authority.Address]*recordLock
}

// recordLock serializes instructions on one record. refs counts holders and
// waiters; the entry is dropped when it reaches zero.
type recordLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Processor and registers it with l as the program that
// controls switch escrows. A nil logger discards output.
func New(st store.SwitchStore, l ledger.Ledger, clock ledger.Clock, logger log15.Logger) (*Processor, error) {
	if logger == nil {
		logger = log15.New()
		logger.SetHandler(log15.DiscardHandler())
	}
	prog, err := l.Register(deadman.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("processor: register program: %w", err)
	}
	return &Processor{
		store:  st,
		ledger: l,
		prog:   prog,
		clock:  clock,
		log:    logger.New("module", "processor"),
		locks:  make(map[authority.Address]*recordLock),
	}, nil
}

func (p *Processor) lock(addr authority.Address) func() {
	p.locksMu.Lock()
	l := p.locks[addr]
	if l == nil {
		l = &recordLock{}
		p.locks[addr] = l
	}
	l.refs++
	p.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, addr)
		}
		p.locksMu.Unlock()
	}
}

// Execute runs ins. Owner-only operations must be signed by the owner.
func (p *Processor) Execute(ctx context.Context, ins *Instruction) (*Receipt, error) {
	if ins == nil {
		return nil, fmt.Errorf("%w: nil instruction", ErrInvalidInstruction)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := opNames[ins.Op]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOp, ins.Op)
	}
	if ins.Op.OwnerOnly() {
		signer, err := ins.Signer()
		if err != nil {
			return nil, err
		}
		if signer != ins.Owner {
			return nil, fmt.Errorf("%w: %s is not the owner", deadman.ErrUnauthorized, signer)
		}
	}

	recordAddr, err := store.Key(ins.Owner, ins.SwitchID)
	if err != nil {
		return nil, err
	}
	unlock := p.lock(recordAddr)
	defer unlock()

	rc := &Receipt{InstructionID: ins.ID, Op: ins.Op, Record: recordAddr}
	log := p.log.New("op", ins.Op, "id", ins.ID, "owner", ins.Owner, "switch", ins.SwitchID)

	switch ins.Op {
	case OpInitialize, OpInitializeWithAssets:
		err = p.initialize(ins, rc)
	case OpHeartbeat:
		err = p.heartbeat(ins, rc)
	case OpExpire:
		err = p.expire(rc)
	case OpDistribute:
		err = p.distribute(ctx, ins, rc)
	case OpDistributeAsset:
		err = p.distributeAsset(ctx, ins, rc, log)
	case OpCancel:
		err = p.cancel(ctx, ins, rc, log)
	case OpWithdraw:
		err = p.withdraw(ctx, ins, rc)
	}
	if err != nil {
		log.Debug("instruction rejected", "class", deadman.Classify(err), "err", err)
		return nil, err
	}
	log.Info("instruction executed", "status", rc.Status, "amount", rc.Amount, "recipient", rc.Recipient)
	return rc, nil
}

// load fetches the record at rc.Record and fills in the receipt.
func (p *Processor) load(rc *Receipt) (*deadman.Switch, error) {
	s, err := p.store.Get(rc.Record)
	if err != nil {
		return nil, err
	}
	escrow, err := s.EscrowAddress()
	if err != nil {
		return nil, fmt.Errorf("processor: escrow address: %w", err)
	}
	rc.Escrow = escrow
	rc.Status = s.Status
	rc.Deadline = s.HeartbeatDeadline
	rc.Nonce = s.Nonce
	return s, nil
}

// loadOwned loads the record for an owner instruction and checks that the
// instruction carries the record's current nonce.
func (p *Processor) loadOwned(ins *Instruction, rc *Receipt) (*deadman.Switch, error) {
	s, err := p.load(rc)
	if err != nil {
		return nil, err
	}
	if ins.Nonce != s.Nonce {
		return nil, fmt.Errorf("%w: instruction nonce %d, switch expects %d", deadman.ErrUnauthorized, ins.Nonce, s.Nonce)
	}
	return s, nil
}

// commitOwned advances the nonce and writes s.
func (p *Processor) commitOwned(s *deadman.Switch, rc *Receipt) error {
	s.Nonce++
	if err := p.store.Put(s); err != nil {
		return err
	}
	rc.Nonce = s.Nonce
	return nil
}

func (p *Processor) initialize(ins *Instruction, rc *Receipt) error {
	now := p.clock.Now()
	var (
		s   *deadman.Switch
		err error
	)
	if ins.Op == OpInitialize {
		s, err = deadman.Initialize(ins.Owner, ins.SwitchID, ins.TimeoutSeconds, ins.Beneficiaries, ins.Asset, now)
	} else {
		s, err = deadman.InitializeWithAssets(ins.Owner, ins.SwitchID, ins.TimeoutSeconds, ins.Allocations, now)
	}
	if err != nil {
		return err
	}
	if err := p.store.Create(s); err != nil {
		return err
	}
	rc.Escrow, err = s.EscrowAddress()
	rc.Status = s.Status
	rc.Deadline = s.HeartbeatDeadline
	return err
}

func (p *Processor) heartbeat(ins *Instruction, rc *Receipt) error {
	s, err := p.loadOwned(ins, rc)
	if err != nil {
		return err
	}
	if err := s.Heartbeat(p.clock.Now()); err != nil {
		return err
	}
	if err := p.commitOwned(s, rc); err != nil {
		return err
	}
	rc.Deadline = s.HeartbeatDeadline
	return nil
}

func (p *Processor) expire(rc *Receipt) error {
	s, err := p.load(rc)
	if err != nil {
		return err
	}
	if err := s.TriggerExpiry(p.clock.Now()); err != nil {
		return err
	}
	if err := p.store.Put(s); err != nil {
		return err
	}
	rc.Status = s.Status
	return nil
}

// escrowBalance returns the escrow's balance of asset and the reserve that
// must stay behind. Token accounts carry no reserve.
func (p *Processor) escrowBalance(ctx context.Context, escrow authority.Address, asset deadman.Asset) (uint64, uint64, error) {
	if asset.IsNative() {
		bal, err := p.ledger.Balance(ctx, escrow)
		return bal, p.ledger.Reserve(escrowDataSize), err
	}
	bal, err := p.ledger.TokenBalance(ctx, asset.Mint, escrow)
	return bal, 0, err
}

func (p *Processor) send(ctx context.Context, s *deadman.Switch, asset deadman.Asset, to authority.Address, amount uint64) error {
	if asset.IsNative() {
		return p.ledger.Transfer(ctx, p.prog, s.EscrowSeeds(), to, amount)
	}
	return p.ledger.TransferToken(ctx, p.prog, asset.Mint, s.EscrowSeeds(), to, amount)
}

// transferErr reports a ledger shortfall as ErrInsufficientFunds, which is what
// a concurrent drain between balance read and transfer looks like.
func transferErr(err error) error {
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		return fmt.Errorf("%w: %w", deadman.ErrInsufficientFunds, err)
	}
	return fmt.Errorf("processor: transfer: %w", err)
}

func (p *Processor) distribute(ctx context.Context, ins *Instruction, rc *Receipt) error {
	s, err := p.load(rc)
	if err != nil {
		return err
	}
	if _, err := s.CheckDistribution(ins.Asset, ins.Beneficiary); err != nil {
		return err
	}
	balance, reserve, err := p.escrowBalance(ctx, rc.Escrow, ins.Asset)
	if err != nil {
		return fmt.Errorf("processor: escrow balance: %w", err)
	}
	amount, err := s.PlanDistribution(ins.Asset, balance, reserve, ins.Beneficiary)
	if err != nil {
		return err
	}
	if err := p.send(ctx, s, ins.Asset, ins.Beneficiary, amount); err != nil {
		return transferErr(err)
	}
	rc.Recipient = ins.Beneficiary
	rc.Asset = ins.Asset
	rc.Amount = amount
	return nil
}

func (p *Processor) distributeAsset(ctx context.Context, ins *Instruction, rc *Receipt, log log15.Logger) error {
	s, err := p.load(rc)
	if err != nil {
		return err
	}
	before := s.Clone()
	if err := s.ApplyAssetDistribution(ins.Beneficiary, ins.Asset, ins.Amount); err != nil {
		return err
	}
	// Paid counter is committed before funds move and restored on failure.
	if err := p.store.Put(s); err != nil {
		return err
	}
	if err := p.send(ctx, s, ins.Asset, ins.Beneficiary, ins.Amount); err != nil {
		if rerr := p.store.Put(before); rerr != nil {
			log.Error("failed to restore allocation after transfer failure", "err", rerr)
			return errors.Join(fmt.Errorf("processor: transfer: %w", err), rerr)
		}
		return transferErr(err)
	}
	rc.Recipient = ins.Beneficiary
	rc.Asset = ins.Asset
	rc.Amount = ins.Amount
	return nil
}

func (p *Processor) cancel(ctx context.Context, ins *Instruction, rc *Receipt, log log15.Logger) error {
	s, err := p.loadOwned(ins, rc)
	if err != nil {
		return err
	}
	if err := s.Cancel(); err != nil {
		return err
	}
	if err := p.commitOwned(s, rc); err != nil {
		return err
	}
	rc.Status = s.Status
	if s.Model != deadman.ModelAllocation {
		return nil
	}

	// Allocation-model switches are closed: everything in the escrow goes
	// back to the owner, reserve included, and the record is removed.
	swept, err := p.sweep(ctx, s, rc.Escrow)
	if err != nil {
		log.Warn("close failed, switch left canceled for withdrawal", "err", err)
		return nil
	}
	if err := p.store.Delete(rc.Record); err != nil {
		log.Warn("swept escrow but could not delete record", "err", err)
		return nil
	}
	rc.Closed = true
	rc.Recipient = s.Owner
	rc.Amount = swept
	return nil
}

// sweep moves every balance the escrow holds to the owner and returns the
// native amount moved.
func (p *Processor) sweep(ctx context.Context, s *deadman.Switch, escrow authority.Address) (uint64, error) {
	assets := []deadman.Asset{deadman.Native()}
	for _, a := range s.Assets() {
		if !a.IsNative() {
			assets = append(assets, a)
		}
	}

	var native uint64
	for _, asset := range assets {
		bal, _, err := p.escrowBalance(ctx, escrow, asset)
		if err != nil {
			return native, err
		}
		if bal == 0 {
			continue
		}
		if err := p.send(ctx, s, asset, s.Owner, bal); err != nil {
			return native, fmt.Errorf("sweep %s: %w", asset, err)
		}
		if asset.IsNative() {
			native += bal
		}
	}
	return native, nil
}

// withdraw consumes the nonce before funds move; a failed transfer needs a
// freshly signed instruction.
func (p *Processor) withdraw(ctx context.Context, ins *Instruction, rc *Receipt) error {
	s, err := p.loadOwned(ins, rc)
	if err != nil {
		return err
	}
	if s.Status != deadman.StatusCanceled {
		return fmt.Errorf("%w: %s", deadman.ErrSwitchNotCanceled, s.Status)
	}
	if !ins.Asset.Valid() {
		return fmt.Errorf("%w: %s", deadman.ErrInvalidTokenType, ins.Asset)
	}
	balance, reserve, err := p.escrowBalance(ctx, rc.Escrow, ins.Asset)
	if err != nil {
		return fmt.Errorf("processor: escrow balance: %w", err)
	}
	amount, err := s.PlanWithdraw(balance, reserve)
	if err != nil {
		return err
	}
	if err := p.commitOwned(s, rc); err != nil {
		return err
	}
	if err := p.send(ctx, s, ins.Asset, s.Owner, amount); err != nil {
		return transferErr(err)
	}
	rc.Recipient = s.Owner
	rc.Asset = ins.Asset
	rc.Amount = amount
	return nil
}
