package deadman

import (
	"fmt"
	"math"
)

// ValidateSwitchID checks that id is 1..MaxSwitchIDLen bytes.
func ValidateSwitchID(id string) error {
	if len(id) == 0 || len(id) > MaxSwitchIDLen {
		return fmt.Errorf("%w: length %d", ErrInvalidSwitchID, len(id))
	}
	return nil
}

func validateCount(n int) error {
	if n == 0 || n > MaxBeneficiaries {
		return fmt.Errorf("%w: %d", ErrInvalidBeneficiaryCount, n)
	}
	return nil
}

// ValidateShares checks that every share is within [0, 10000] and that the
// shares sum to exactly BasisPointsTotal.
func ValidateShares(beneficiaries []Beneficiary) error {
	var total uint32
	for i, b := range beneficiaries {
		if b.ShareBps > BasisPointsTotal {
			return fmt.Errorf("%w: entry %d has %d bps", ErrInvalidShareDistribution, i, b.ShareBps)
		}
		total += uint32(b.ShareBps)
	}
	if total != BasisPointsTotal {
		return fmt.Errorf("%w: sum %d", ErrInvalidShareDistribution, total)
	}
	return nil
}

// validateTimeout also rejects timeouts whose deadline would overflow.
func validateTimeout(timeout, now int64) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTimeout, timeout)
	}
	if now > 0 && timeout > math.MaxInt64-now {
		return fmt.Errorf("%w: %d overflows deadline", ErrInvalidTimeout, timeout)
	}
	return nil
}

func validateAsset(a Asset) error {
	if !a.Valid() {
		return fmt.Errorf("%w: kind %d mint %s", ErrInvalidTokenType, a.Kind, a.Mint)
	}
	return nil
}

// ValidateAllocations checks every allocation carries 1..MaxAssetsPerAllocation
// well-formed assets, each with a positive amount and listed at most once.
func ValidateAllocations(allocs []Allocation) error {
	for i, alloc := range allocs {
		if len(alloc.Assets) == 0 || len(alloc.Assets) > MaxAssetsPerAllocation {
			return fmt.Errorf("%w: allocation %d has %d assets", ErrInvalidAssetAllocation, i, len(alloc.Assets))
		}
		seen := make(map[Asset]bool, len(alloc.Assets))
		for j, aa := range alloc.Assets {
			if !aa.Asset.Valid() {
				return fmt.Errorf("%w: allocation %d asset %d is malformed", ErrInvalidAssetAllocation, i, j)
			}
			if aa.Amount == 0 {
				return fmt.Errorf("%w: allocation %d asset %d has zero amount", ErrInvalidAssetAllocation, i, j)
			}
			if seen[aa.Asset] {
				return fmt.Errorf("%w: allocation %d lists %s twice", ErrInvalidAssetAllocation, i, aa.Asset)
			}
			seen[aa.Asset] = true
		}
	}
	return nil
}
