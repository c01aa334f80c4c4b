package processor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"

	"github.com/bitfsorg/deadswitch-go/authority"
	"github.com/bitfsorg/deadswitch-go/deadman"
)

// Op names a switch operation.
type Op uint8

const (
	OpInitialize Op = iota + 1
	OpInitializeWithAssets
	OpHeartbeat
	OpExpire
	OpDistribute
	OpDistributeAsset
	OpCancel
	OpWithdraw
)

var opNames = map[Op]string{
	OpInitialize:           "initialize",
	OpInitializeWithAssets: "initialize_with_assets",
	OpHeartbeat:            "heartbeat",
	OpExpire:               "expire",
	OpDistribute:           "distribute",
	OpDistributeAsset:      "distribute_asset",
	OpCancel:               "cancel",
	OpWithdraw:             "withdraw",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// OwnerOnly reports whether the operation must be signed by the switch owner.
func (o Op) OwnerOnly() bool {
	switch o {
	case OpInitialize, OpInitializeWithAssets, OpHeartbeat, OpCancel, OpWithdraw:
		return true
	default:
		return false
	}
}

// Instruction is one request against a switch. Only the fields the operation
// uses need to be set. Owner-only operations carry the signer's compressed
// public key and a DER signature over Digest. Owner operations on an existing
// switch must also carry the switch's current Nonce.
type Instruction struct {
	ID             uuid.UUID             `cbor:"1,keyasint"`
	Op             Op                    `cbor:"2,keyasint"`
	Owner          authority.Address     `cbor:"3,keyasint"`
	SwitchID       string                `cbor:"4,keyasint"`
	TimeoutSeconds int64                 `cbor:"5,keyasint,omitempty"`
	Beneficiaries  []deadman.Beneficiary `cbor:"6,keyasint,omitempty"`
	Allocations    []deadman.Allocation  `cbor:"7,keyasint,omitempty"`
	Asset          deadman.Asset         `cbor:"8,keyasint"`
	Beneficiary    authority.Address     `cbor:"9,keyasint"`
	Amount         uint64                `cbor:"10,keyasint,omitempty"`
	Nonce          uint64                `cbor:"11,keyasint"`

	SignerPubKey []byte `cbor:"-"`
	Signature    []byte `cbor:"-"`
}

// NewInstruction returns an unsigned instruction with a fresh ID.
func NewInstruction(op Op, owner authority.Address, switchID string) *Instruction {
	return &Instruction{
		ID:       uuid.New(),
		Op:       op,
		Owner:    owner,
		SwitchID: switchID,
	}
}

var digestMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("processor: cbor enc mode: %v", err))
	}
	digestMode = em
}

// Digest returns SHA-256 of the canonical CBOR encoding of the unsigned fields.
func (ins *Instruction) Digest() ([]byte, error) {
	data, err := digestMode.Marshal(ins)
	if err != nil {
		return nil, fmt.Errorf("processor: encode instruction: %w", err)
	}
	return bsvhash.Sha256(data), nil
}

// Sign signs the instruction with priv and records the signer's public key.
func (ins *Instruction) Sign(priv *ec.PrivateKey) error {
	if priv == nil {
		return fmt.Errorf("%w: nil private key", ErrInvalidInstruction)
	}
	digest, err := ins.Digest()
	if err != nil {
		return err
	}
	sig, err := priv.Sign(digest)
	if err != nil {
		return fmt.Errorf("processor: sign instruction: %w", err)
	}
	ins.SignerPubKey = priv.PubKey().Compressed()
	ins.Signature = sig.Serialize()
	return nil
}

// Signer verifies the signature and returns the address of the signer.
func (ins *Instruction) Signer() (authority.Address, error) {
	if len(ins.SignerPubKey) == 0 || len(ins.Signature) == 0 {
		return authority.Address{}, fmt.Errorf("%w: instruction is unsigned", deadman.ErrUnauthorized)
	}
	addr, pub, err := authority.AddressFromPubKeyBytes(ins.SignerPubKey)
	if err != nil {
		return authority.Address{}, fmt.Errorf("%w: %w", deadman.ErrUnauthorized, err)
	}
	sig, err := ec.ParseDERSignature(ins.Signature)
	if err != nil {
		return authority.Address{}, fmt.Errorf("%w: parse signature: %w", deadman.ErrUnauthorized, err)
	}
	digest, err := ins.Digest()
	if err != nil {
		return authority.Address{}, err
	}
	if !sig.Verify(digest, pub) {
		return authority.Address{}, fmt.Errorf("%w: bad signature", deadman.ErrUnauthorized)
	}
	return addr, nil
}
