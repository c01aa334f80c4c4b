package processor

import (
	"context"

	"github.com/bitfsorg/deadswitch-go/authority"
	"github.com/bitfsorg/deadswitch-go/deadman"
)

// The permissionless operations need no signature; these helpers build and
// execute them directly.

// Expire triggers expiry of (owner, switchID).
func (p *Processor) Expire(ctx context.Context, owner authority.Address, switchID string) (*Receipt, error) {
	return p.Execute(ctx, NewInstruction(OpExpire, owner, switchID))
}

// Distribute pays beneficiary its proportional share of the escrow's asset balance.
func (p *Processor) Distribute(ctx context.Context, owner authority.Address, switchID string,
	beneficiary authority.Address, asset deadman.Asset) (*Receipt, error) {
	ins := NewInstruction(OpDistribute, owner, switchID)
	ins.Beneficiary = beneficiary
	ins.Asset = asset
	return p.Execute(ctx, ins)
}

// DistributeAsset pays amount of asset to beneficiary under the allocation model.
func (p *Processor) DistributeAsset(ctx context.Context, owner authority.Address, switchID string,
	beneficiary authority.Address, asset deadman.Asset, amount uint64) (*Receipt, error) {
	ins := NewInstruction(OpDistributeAsset, owner, switchID)
	ins.Beneficiary = beneficiary
	ins.Asset = asset
	ins.Amount = amount
	return p.Execute(ctx, ins)
}
