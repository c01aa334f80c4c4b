package deadman

import (
	"fmt"
	"math/bits"

	"github.com/bitfsorg/deadswitch-go/authority"
)

// Distributable returns balance - reserve, or ErrInsufficientFunds when
// nothing is left above the reserve.
func Distributable(balance, reserve uint64) (uint64, error) {
	if balance <= reserve {
		return 0, fmt.Errorf("%w: balance %d, reserve %d", ErrInsufficientFunds, balance, reserve)
	}
	return balance - reserve, nil
}

// ShareOf returns floor(distributable * shareBps / 10000). The product is
// taken in 128 bits so it cannot overflow. Shares above 10000 are clamped.
func ShareOf(distributable uint64, shareBps uint16) uint64 {
	bps := uint64(shareBps)
	if bps > BasisPointsTotal {
		bps = BasisPointsTotal
	}
	hi, lo := bits.Mul64(distributable, bps)
	// hi < BasisPointsTotal because bps <= BasisPointsTotal, so Div64 cannot panic.
	q, _ := bits.Div64(hi, lo, BasisPointsTotal)
	return q
}

// CheckDistribution runs the proportional payout preconditions that do not
// depend on the escrow balance and returns the matching beneficiary.
func (s *Switch) CheckDistribution(asset Asset, beneficiary authority.Address) (*Beneficiary, error) {
	if s.Status != StatusExpired {
		return nil, fmt.Errorf("%w: %s", ErrSwitchNotExpired, s.Status)
	}
	if s.Model != ModelProportional {
		return nil, fmt.Errorf("%w: %s", ErrWrongPayoutModel, s.Model)
	}
	if asset != s.TokenType {
		return nil, fmt.Errorf("%w: switch holds %s, got %s", ErrInvalidTokenType, s.TokenType, asset)
	}
	_, b := s.FindBeneficiary(beneficiary)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBeneficiaryNotFound, beneficiary)
	}
	return b, nil
}

// PlanDistribution computes the proportional payout for beneficiary from an
// escrow holding escrowBalance of asset. reserve is ignored for tokens.
func (s *Switch) PlanDistribution(asset Asset, escrowBalance, reserve uint64, beneficiary authority.Address) (uint64, error) {
	b, err := s.CheckDistribution(asset, beneficiary)
	if err != nil {
		return 0, err
	}
	if !asset.IsNative() {
		reserve = 0
	}
	d, err := Distributable(escrowBalance, reserve)
	if err != nil {
		return 0, err
	}
	amount := ShareOf(d, b.ShareBps)
	if amount == 0 {
		return 0, fmt.Errorf("%w: share of %d at %d bps rounds to zero", ErrInsufficientFunds, d, b.ShareBps)
	}
	return amount, nil
}

// PlanAssetDistribution checks that amount of asset may be paid to
// beneficiary under the allocation model. An asset not allocated to the
// beneficiary counts as zero allocated.
func (s *Switch) PlanAssetDistribution(beneficiary authority.Address, asset Asset, amount uint64) error {
	if s.Status != StatusExpired {
		return fmt.Errorf("%w: %s", ErrSwitchNotExpired, s.Status)
	}
	if s.Model != ModelAllocation {
		return fmt.Errorf("%w: %s", ErrWrongPayoutModel, s.Model)
	}
	_, alloc := s.FindAllocation(beneficiary)
	if alloc == nil {
		return fmt.Errorf("%w: %s", ErrBeneficiaryNotFound, beneficiary)
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := validateAsset(asset); err != nil {
		return err
	}
	var remaining uint64
	for _, aa := range alloc.Assets {
		if aa.Asset == asset {
			remaining = aa.Remaining()
			break
		}
	}
	if amount > remaining {
		return fmt.Errorf("%w: %s requested %d, %d remaining", ErrAllocationExceeded, asset, amount, remaining)
	}
	return nil
}

// ApplyAssetDistribution validates like PlanAssetDistribution and then records
// amount as paid on the allocation.
func (s *Switch) ApplyAssetDistribution(beneficiary authority.Address, asset Asset, amount uint64) error {
	if err := s.PlanAssetDistribution(beneficiary, asset, amount); err != nil {
		return err
	}
	_, alloc := s.FindAllocation(beneficiary)
	for i := range alloc.Assets {
		if alloc.Assets[i].Asset == asset {
			alloc.Assets[i].Paid += amount
			return nil
		}
	}
	return nil
}

// Payout is an outstanding allocation-model amount.
type Payout struct {
	Beneficiary authority.Address
	Asset       Asset
	Amount      uint64
}

// RemainingPayouts lists every allocation with an unpaid amount, in record order.
func (s *Switch) RemainingPayouts() []Payout {
	var out []Payout
	for _, alloc := range s.Allocations {
		for _, aa := range alloc.Assets {
			if r := aa.Remaining(); r > 0 {
				out = append(out, Payout{Beneficiary: alloc.Address, Asset: aa.Asset, Amount: r})
			}
		}
	}
	return out
}

// PlanWithdraw returns the amount a canceled switch's owner may reclaim.
func (s *Switch) PlanWithdraw(escrowBalance, reserve uint64) (uint64, error) {
	if s.Status != StatusCanceled {
		return 0, fmt.Errorf("%w: %s", ErrSwitchNotCanceled, s.Status)
	}
	return Distributable(escrowBalance, reserve)
}
