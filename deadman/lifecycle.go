package deadman

import (
	"fmt"
	"math"

	"github.com/bitfsorg/deadswitch-go/authority"
)

// Initialize creates an Active proportional-model switch whose deadline is
// now + timeoutSeconds. The first failing check determines the error.
func Initialize(owner authority.Address, switchID string, timeoutSeconds int64,
	beneficiaries []Beneficiary, tokenType Asset, now int64) (*Switch, error) {

	if err := ValidateSwitchID(switchID); err != nil {
		return nil, err
	}
	if err := validateCount(len(beneficiaries)); err != nil {
		return nil, err
	}
	if err := ValidateShares(beneficiaries); err != nil {
		return nil, err
	}
	if err := validateTimeout(timeoutSeconds, now); err != nil {
		return nil, err
	}
	if err := validateAsset(tokenType); err != nil {
		return nil, err
	}

	s := &Switch{
		Owner:             owner,
		SwitchID:          switchID,
		Beneficiaries:     append([]Beneficiary(nil), beneficiaries...),
		TokenType:         tokenType,
		TimeoutSeconds:    timeoutSeconds,
		HeartbeatDeadline: now + timeoutSeconds,
		Status:            StatusActive,
		Model:             ModelProportional,
		CreatedAt:         now,
	}
	if err := s.findBumps(); err != nil {
		return nil, err
	}
	return s, nil
}

// InitializeWithAssets creates an Active allocation-model switch. Each
// allocation becomes a zero-share beneficiary and the allocation table is
// kept on the record so payouts can be checked against it.
func InitializeWithAssets(owner authority.Address, switchID string, timeoutSeconds int64,
	allocations []Allocation, now int64) (*Switch, error) {

	if err := ValidateSwitchID(switchID); err != nil {
		return nil, err
	}
	if err := validateCount(len(allocations)); err != nil {
		return nil, err
	}
	if err := validateTimeout(timeoutSeconds, now); err != nil {
		return nil, err
	}
	if err := ValidateAllocations(allocations); err != nil {
		return nil, err
	}

	s := &Switch{
		Owner:             owner,
		SwitchID:          switchID,
		Beneficiaries:     make([]Beneficiary, len(allocations)),
		TokenType:         Native(),
		TimeoutSeconds:    timeoutSeconds,
		HeartbeatDeadline: now + timeoutSeconds,
		Status:            StatusActive,
		Model:             ModelAllocation,
		Allocations:       make([]Allocation, len(allocations)),
		CreatedAt:         now,
	}
	for i, alloc := range allocations {
		s.Beneficiaries[i] = Beneficiary{Address: alloc.Address}
		assets := make([]AssetAmount, len(alloc.Assets))
		for j, aa := range alloc.Assets {
			assets[j] = AssetAmount{Asset: aa.Asset, Amount: aa.Amount}
		}
		s.Allocations[i] = Allocation{Address: alloc.Address, Assets: assets}
	}
	if err := s.findBumps(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Switch) findBumps() error {
	_, bump, err := FindRecordAddress(s.Owner, s.SwitchID)
	if err != nil {
		return fmt.Errorf("derive record address: %w", err)
	}
	_, escrowBump, err := FindEscrowAddress(s.Owner, s.SwitchID)
	if err != nil {
		return fmt.Errorf("derive escrow address: %w", err)
	}
	s.Bump = bump
	s.EscrowBump = escrowBump
	return nil
}

// Heartbeat pushes the deadline to now + timeout. A heartbeat after the
// deadline is refused and leaves the switch untouched.
func (s *Switch) Heartbeat(now int64) error {
	if s.Status != StatusActive {
		return fmt.Errorf("%w: %s", ErrSwitchNotActive, s.Status)
	}
	if now > s.HeartbeatDeadline {
		return fmt.Errorf("%w: deadline %d, now %d", ErrSwitchAlreadyExpired, s.HeartbeatDeadline, now)
	}
	next := int64(math.MaxInt64)
	if s.TimeoutSeconds <= math.MaxInt64-now {
		next = now + s.TimeoutSeconds
	}
	// Deadline never moves backwards, even with a clock that steps back.
	if next > s.HeartbeatDeadline {
		s.HeartbeatDeadline = next
	}
	return nil
}

// CanExpire reports whether TriggerExpiry would succeed at now.
func CanExpire(s *Switch, now int64) bool {
	return s.Status == StatusActive && now > s.HeartbeatDeadline
}

// TriggerExpiry marks the switch Expired once the deadline has passed.
// Changing the status is its only effect; payouts are separate operations.
func (s *Switch) TriggerExpiry(now int64) error {
	if s.Status != StatusActive {
		return fmt.Errorf("%w: %s", ErrSwitchNotActive, s.Status)
	}
	if now <= s.HeartbeatDeadline {
		return fmt.Errorf("%w: deadline %d, now %d", ErrDeadlineNotPassed, s.HeartbeatDeadline, now)
	}
	s.Status = StatusExpired
	return nil
}

// Cancel marks an Active switch Canceled.
func (s *Switch) Cancel() error {
	if s.Status != StatusActive {
		return fmt.Errorf("%w: %s", ErrSwitchNotActive, s.Status)
	}
	s.Status = StatusCanceled
	return nil
}
