package deadman

import (
	"encoding/binary"
	"fmt"
)

const (
	recordVersion = 2

	recordHeaderSize      = 22 // version(1) + owner(20) + id_len(1)
	recordBodySize        = 58 // token(21) + timeout(8) + deadline(8) + status/bumps/model(4) + created_at(8) + nonce(8) + num_beneficiaries(1)
	recordBeneficiarySize = 22 // address(20) + share_bps(2)
	recordAllocHeaderSize = 21 // address(20) + num_assets(1)
	recordAssetSize       = 37 // kind(1) + mint(20) + amount(8) + paid(8)
)

// RecordSize returns the encoded size of s in bytes. The ledger reserve of a
// switch record is computed from it.
func RecordSize(s *Switch) int {
	size := recordHeaderSize + len(s.SwitchID) + recordBodySize +
		recordBeneficiarySize*len(s.Beneficiaries) + 1
	for _, a := range s.Allocations {
		size += recordAllocHeaderSize + recordAssetSize*len(a.Assets)
	}
	return size
}

// SerializeSwitch encodes a switch record to its binary form.
func SerializeSwitch(s *Switch) ([]byte, error) {
	if len(s.SwitchID) > MaxSwitchIDLen {
		return nil, fmt.Errorf("%w: switch id length %d", ErrInvalidRecordData, len(s.SwitchID))
	}
	if len(s.Beneficiaries) > MaxBeneficiaries || len(s.Allocations) > MaxBeneficiaries {
		return nil, fmt.Errorf("%w: %d beneficiaries, %d allocations",
			ErrInvalidRecordData, len(s.Beneficiaries), len(s.Allocations))
	}
	buf := make([]byte, RecordSize(s))
	offset := 0

	buf[offset] = recordVersion
	offset++
	copy(buf[offset:offset+20], s.Owner[:])
	offset += 20
	buf[offset] = byte(len(s.SwitchID))
	offset++
	copy(buf[offset:], s.SwitchID)
	offset += len(s.SwitchID)

	buf[offset] = byte(s.TokenType.Kind)
	offset++
	copy(buf[offset:offset+20], s.TokenType.Mint[:])
	offset += 20
	binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(s.TimeoutSeconds))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(s.HeartbeatDeadline))
	offset += 8
	buf[offset] = byte(s.Status)
	buf[offset+1] = s.Bump
	buf[offset+2] = s.EscrowBump
	buf[offset+3] = byte(s.Model)
	offset += 4
	binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(s.CreatedAt))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:offset+8], s.Nonce)
	offset += 8

	buf[offset] = byte(len(s.Beneficiaries))
	offset++
	for _, b := range s.Beneficiaries {
		copy(buf[offset:offset+20], b.Address[:])
		offset += 20
		binary.BigEndian.PutUint16(buf[offset:offset+2], b.ShareBps)
		offset += 2
	}

	buf[offset] = byte(len(s.Allocations))
	offset++
	for _, a := range s.Allocations {
		if len(a.Assets) > MaxAssetsPerAllocation {
			return nil, fmt.Errorf("%w: allocation with %d assets", ErrInvalidRecordData, len(a.Assets))
		}
		copy(buf[offset:offset+20], a.Address[:])
		offset += 20
		buf[offset] = byte(len(a.Assets))
		offset++
		for _, aa := range a.Assets {
			buf[offset] = byte(aa.Asset.Kind)
			offset++
			copy(buf[offset:offset+20], aa.Asset.Mint[:])
			offset += 20
			binary.BigEndian.PutUint64(buf[offset:offset+8], aa.Amount)
			offset += 8
			binary.BigEndian.PutUint64(buf[offset:offset+8], aa.Paid)
			offset += 8
		}
	}
	return buf, nil
}

// DeserializeSwitch decodes a switch record produced by SerializeSwitch.
func DeserializeSwitch(data []byte) (*Switch, error) {
	if len(data) < recordHeaderSize {
		return nil, fmt.Errorf("%w: too short (%d bytes)", ErrInvalidRecordData, len(data))
	}
	if data[0] != recordVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidRecordData, data[0])
	}
	offset := 1

	s := &Switch{}
	copy(s.Owner[:], data[offset:offset+20])
	offset += 20
	idLen := int(data[offset])
	offset++

	need := func(n int) error {
		if len(data)-offset < n {
			return fmt.Errorf("%w: need %d bytes at offset %d, have %d",
				ErrInvalidRecordData, n, offset, len(data)-offset)
		}
		return nil
	}

	if idLen > MaxSwitchIDLen {
		return nil, fmt.Errorf("%w: switch id length %d", ErrInvalidRecordData, idLen)
	}
	if err := need(idLen + recordBodySize); err != nil {
		return nil, err
	}
	s.SwitchID = string(data[offset : offset+idLen])
	offset += idLen

	s.TokenType.Kind = AssetKind(data[offset])
	offset++
	copy(s.TokenType.Mint[:], data[offset:offset+20])
	offset += 20
	s.TimeoutSeconds = int64(binary.BigEndian.Uint64(data[offset : offset+8]))
	offset += 8
	s.HeartbeatDeadline = int64(binary.BigEndian.Uint64(data[offset : offset+8]))
	offset += 8
	s.Status = Status(data[offset])
	s.Bump = data[offset+1]
	s.EscrowBump = data[offset+2]
	s.Model = PayoutModel(data[offset+3])
	offset += 4
	s.CreatedAt = int64(binary.BigEndian.Uint64(data[offset : offset+8]))
	offset += 8
	s.Nonce = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8

	if s.Status > StatusCanceled || s.Model > ModelAllocation {
		return nil, fmt.Errorf("%w: status %d model %d", ErrInvalidRecordData, s.Status, s.Model)
	}

	numBeneficiaries := int(data[offset])
	offset++
	if numBeneficiaries > MaxBeneficiaries {
		return nil, fmt.Errorf("%w: %d beneficiaries", ErrInvalidRecordData, numBeneficiaries)
	}
	if err := need(recordBeneficiarySize*numBeneficiaries + 1); err != nil {
		return nil, err
	}
	s.Beneficiaries = make([]Beneficiary, numBeneficiaries)
	for i := range s.Beneficiaries {
		copy(s.Beneficiaries[i].Address[:], data[offset:offset+20])
		offset += 20
		s.Beneficiaries[i].ShareBps = binary.BigEndian.Uint16(data[offset : offset+2])
		offset += 2
	}

	numAllocs := int(data[offset])
	offset++
	if numAllocs > MaxBeneficiaries {
		return nil, fmt.Errorf("%w: %d allocations", ErrInvalidRecordData, numAllocs)
	}
	if numAllocs > 0 {
		s.Allocations = make([]Allocation, numAllocs)
	}
	for i := range s.Allocations {
		if err := need(recordAllocHeaderSize); err != nil {
			return nil, err
		}
		copy(s.Allocations[i].Address[:], data[offset:offset+20])
		offset += 20
		numAssets := int(data[offset])
		offset++
		if numAssets > MaxAssetsPerAllocation {
			return nil, fmt.Errorf("%w: allocation %d has %d assets", ErrInvalidRecordData, i, numAssets)
		}
		if err := need(recordAssetSize * numAssets); err != nil {
			return nil, err
		}
		s.Allocations[i].Assets = make([]AssetAmount, numAssets)
		for j := range s.Allocations[i].Assets {
			aa := &s.Allocations[i].Assets[j]
			aa.Asset.Kind = AssetKind(data[offset])
			offset++
			copy(aa.Asset.Mint[:], data[offset:offset+20])
			offset += 20
			aa.Amount = binary.BigEndian.Uint64(data[offset : offset+8])
			offset += 8
			aa.Paid = binary.BigEndian.Uint64(data[offset : offset+8])
			offset += 8
		}
	}

	if offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidRecordData, len(data)-offset)
	}
	return s, nil
}
