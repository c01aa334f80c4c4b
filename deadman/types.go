// Package deadman implements the dead man's switch lifecycle and the payout
// arithmetic for its escrow.
//
// A Switch is created Active with a heartbeat deadline. The owner pushes the
// deadline forward with heartbeats; once it has passed anyone may expire the
// switch, after which beneficiaries are paid out of the escrow. While still
// Active the owner may cancel and withdraw instead. Expired and Canceled are
// terminal.
//
// Everything in this package is pure: it validates, mutates the in-memory
// record and computes amounts. Persistence, transfers and signature checks
// live in the store, ledger and processor packages.
package deadman

import (
	"fmt"

	"github.com/bitfsorg/deadswitch-go/authority"
)

const (
	// MaxSwitchIDLen is the maximum switch identifier length in bytes.
	MaxSwitchIDLen = authority.MaxSeedLen

	// MaxBeneficiaries is the maximum number of beneficiaries or allocations.
	MaxBeneficiaries = 10

	// BasisPointsTotal is the share sum required by the proportional model.
	BasisPointsTotal = 10000

	// MaxAssetsPerAllocation bounds the asset list of one allocation.
	MaxAssetsPerAllocation = 8
)

// ProgramID is the identity switch records and escrows are derived under. A
// ledger debits escrows only through the transfer authority issued for it.
var ProgramID = authority.ProgramID("deadswitch")

// Status is the lifecycle state of a switch.
type Status uint8

const (
	StatusActive Status = iota
	StatusExpired
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// AssetKind distinguishes native currency from a fungible token.
type AssetKind uint8

const (
	AssetNative AssetKind = iota
	AssetToken
)

// Asset names what is being moved: native currency, or the token of Mint.
type Asset struct {
	Kind AssetKind
	Mint authority.Address // zero for native
}

// Native returns the native currency asset.
func Native() Asset { return Asset{Kind: AssetNative} }

// Token returns the fungible token asset for mint.
func Token(mint authority.Address) Asset { return Asset{Kind: AssetToken, Mint: mint} }

// IsNative reports whether the asset is native currency.
func (a Asset) IsNative() bool { return a.Kind == AssetNative }

// Valid reports whether the asset is well formed: native carries no mint,
// a token carries a non-zero one.
func (a Asset) Valid() bool {
	switch a.Kind {
	case AssetNative:
		return a.Mint.IsZero()
	case AssetToken:
		return !a.Mint.IsZero()
	default:
		return false
	}
}

func (a Asset) String() string {
	if a.Kind == AssetNative {
		return "native"
	}
	return "token:" + a.Mint.String()
}

// PayoutModel selects how an expired switch pays its beneficiaries.
type PayoutModel uint8

const (
	// ModelProportional pays floor(distributable * bps / 10000) per beneficiary.
	ModelProportional PayoutModel = iota
	// ModelAllocation pays fixed per-asset amounts recorded at creation.
	ModelAllocation
)

func (m PayoutModel) String() string {
	switch m {
	case ModelProportional:
		return "proportional"
	case ModelAllocation:
		return "allocation"
	default:
		return fmt.Sprintf("model(%d)", uint8(m))
	}
}

// Beneficiary is a payee with its share in basis points.
type Beneficiary struct {
	Address  authority.Address
	ShareBps uint16
}

// AssetAmount is a fixed amount of one asset owed to a beneficiary.
type AssetAmount struct {
	Asset  Asset
	Amount uint64
	Paid   uint64
}

// Remaining returns the amount not yet paid out.
func (a AssetAmount) Remaining() uint64 {
	if a.Paid >= a.Amount {
		return 0
	}
	return a.Amount - a.Paid
}

// Allocation lists what one beneficiary is owed under the allocation model.
type Allocation struct {
	Address authority.Address
	Assets  []AssetAmount
}

// Switch is the persisted record of one dead man's switch.
type Switch struct {
	Owner             authority.Address
	SwitchID          string
	Beneficiaries     []Beneficiary
	TokenType         Asset
	TimeoutSeconds    int64
	HeartbeatDeadline int64 // unix seconds
	Status            Status
	Bump              uint8 // record address bump
	EscrowBump        uint8
	Model             PayoutModel
	Allocations       []Allocation // ModelAllocation only
	CreatedAt         int64
	// Nonce counts committed owner instructions. The next signed owner
	// instruction must carry this value.
	Nonce uint64
}

// RecordSeeds returns the derivation seeds of the record address.
func (s *Switch) RecordSeeds() authority.Seeds {
	return recordSeeds(s.Owner, s.SwitchID, s.Bump)
}

// EscrowSeeds returns the derivation seeds that authorize escrow transfers.
func (s *Switch) EscrowSeeds() authority.Seeds {
	return escrowSeeds(s.Owner, s.SwitchID, s.EscrowBump)
}

func recordSeeds(owner authority.Address, switchID string, bump uint8) authority.Seeds {
	return authority.Seeds{Program: ProgramID, Tag: authority.SwitchSeed, Owner: owner, SwitchID: switchID, Bump: bump}
}

func escrowSeeds(owner authority.Address, switchID string, bump uint8) authority.Seeds {
	return authority.Seeds{Program: ProgramID, Tag: authority.EscrowSeed, Owner: owner, SwitchID: switchID, Bump: bump}
}

// FindRecordAddress returns the record address of (owner, switchID) and its bump.
func FindRecordAddress(owner authority.Address, switchID string) (authority.Address, uint8, error) {
	return authority.FindAddress(recordSeeds(owner, switchID, 0))
}

// FindEscrowAddress returns the escrow address of (owner, switchID) and its bump.
func FindEscrowAddress(owner authority.Address, switchID string) (authority.Address, uint8, error) {
	return authority.FindAddress(escrowSeeds(owner, switchID, 0))
}

// RecordAddress re-derives the record address from the stored seeds.
func (s *Switch) RecordAddress() (authority.Address, error) {
	return s.RecordSeeds().Address()
}

// EscrowAddress re-derives the escrow address from the stored seeds.
func (s *Switch) EscrowAddress() (authority.Address, error) {
	return s.EscrowSeeds().Address()
}

// FindBeneficiary returns the index and entry for addr, or -1 if not found.
// The first matching entry wins.
func (s *Switch) FindBeneficiary(addr authority.Address) (int, *Beneficiary) {
	for i := range s.Beneficiaries {
		if s.Beneficiaries[i].Address == addr {
			return i, &s.Beneficiaries[i]
		}
	}
	return -1, nil
}

// FindAllocation returns the index and allocation for addr, or -1 if not found.
func (s *Switch) FindAllocation(addr authority.Address) (int, *Allocation) {
	for i := range s.Allocations {
		if s.Allocations[i].Address == addr {
			return i, &s.Allocations[i]
		}
	}
	return -1, nil
}

// Assets returns every distinct asset the switch can pay out.
func (s *Switch) Assets() []Asset {
	if s.Model == ModelProportional {
		return []Asset{s.TokenType}
	}
	var out []Asset
	seen := make(map[Asset]bool)
	for _, alloc := range s.Allocations {
		for _, aa := range alloc.Assets {
			if !seen[aa.Asset] {
				seen[aa.Asset] = true
				out = append(out, aa.Asset)
			}
		}
	}
	return out
}

// Clone returns a deep copy of the switch.
func (s *Switch) Clone() *Switch {
	c := *s
	c.Beneficiaries = append([]Beneficiary(nil), s.Beneficiaries...)
	if s.Allocations != nil {
		c.Allocations = make([]Allocation, len(s.Allocations))
		for i, a := range s.Allocations {
			c.Allocations[i] = Allocation{
				Address: a.Address,
				Assets:  append([]AssetAmount(nil), a.Assets...),
			}
		}
	}
	return &c
}
