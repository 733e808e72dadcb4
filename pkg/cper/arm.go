// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cper

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ARM processor error section constants.
const (
	// ProcessorErrorRecordLength is the byte size of the fixed processor
	// info record at the head of the section.
	ProcessorErrorRecordLength = 40
	// ProcessorErrorInfoLength is the byte size of one error information
	// structure.
	ProcessorErrorInfoLength = 32
	// ContextRegisterArraySize is the byte size of the register array of a
	// context block. Every context block carries the same array size: the
	// union of the supported register sets, sized by the AArch64 GPR set.
	ContextRegisterArraySize = 256
	// ContextBlockLength is the byte size of one serialized context block:
	// the 8 byte header plus the register array.
	ContextBlockLength = 8 + ContextRegisterArraySize
)

// Register counts of the AArch64 context register sets.
const (
	GPRRegisterCount = 32 // X0..X30 + SP
	EL1RegisterCount = 18
	EL2RegisterCount = 16
	EL3RegisterCount = 11
)

// Word indices of MPIDR_EL1 and MIDR_EL1 within the EL1 register set.
const (
	EL1RegisterMIDRIndex  = 5
	EL1RegisterMPIDRIndex = 6
)

// Processor info record validation bits.
const (
	ProcessorRecordMPIDRValid        = 1 << 0
	ProcessorRecordAffinityValid     = 1 << 1
	ProcessorRecordRunningStateValid = 1 << 2
	ProcessorRecordVendorInfoValid   = 1 << 3
)

// Error information structure types.
const (
	ProcessorErrorTypeCache     = 0x00
	ProcessorErrorTypeTLB       = 0x01
	ProcessorErrorTypeBus       = 0x02
	ProcessorErrorTypeMicroArch = 0x03
)

// Error information structure validation bits.
const (
	ProcessorInfoMultipleErrorValid = 1 << 0
	ProcessorInfoFlagsValid         = 1 << 1
	ProcessorInfoErrorInfoValid     = 1 << 2
	ProcessorInfoVirtualAddrValid   = 1 << 3
	ProcessorInfoPhysicalAddrValid  = 1 << 4
)

// Error information structure flags.
const (
	ProcessorFlagFirstErrorCaptured = 1 << 0
	ProcessorFlagLastErrorCaptured  = 1 << 1
	ProcessorFlagPropagated         = 1 << 2
	ProcessorFlagOverflow           = 1 << 3
)

// Register context types carried by context blocks.
const (
	ContextTypeAArch32GPR = 0
	ContextTypeAArch32EL1 = 1
	ContextTypeAArch32EL2 = 2
	ContextTypeAArch32Sec = 3
	ContextTypeAArch64GPR = 4
	ContextTypeAArch64EL1 = 5
	ContextTypeAArch64EL2 = 6
	ContextTypeAArch64EL3 = 7
)

// Cache/TLB error structure field values.
const (
	TransactionTypeInstruction = 0
	TransactionTypeDataAccess  = 1
	TransactionTypeGeneric     = 2

	OperationGenericError = 0
	OperationGenericRead  = 1
	OperationGenericWrite = 2
)

// Cache/TLB error structure validation bits (bits 0..15 of the packed
// error information word).
const (
	CacheTLBTransactionTypeValid = 1 << 0
	CacheTLBOperationValid       = 1 << 1
	CacheTLBLevelValid           = 1 << 2
	CacheTLBContextCorruptValid  = 1 << 3
	CacheTLBCorrectedValid       = 1 << 4
	CacheTLBPrecisePCValid       = 1 << 5
	CacheTLBRestartablePCValid   = 1 << 6
)

// Bit positions of the packed cache/TLB error information word.
const (
	cacheTLBTransactionTypeShift = 16
	cacheTLBOperationShift       = 18
	cacheTLBLevelShift           = 22
	cacheTLBContextCorruptShift  = 25
	cacheTLBCorrectedShift       = 26
	cacheTLBPrecisePCShift       = 27
	cacheTLBRestartablePCShift   = 28
)

// ProcessorErrorRecord is the fixed processor info record at the head of
// an ARM processor error section.
type ProcessorErrorRecord struct {
	ValidFields    uint32
	ErrInfoNum     uint16
	ContextInfoNum uint16
	SectionLength  uint32
	ErrorAffinity  uint8
	Reserved       [3]uint8 `json:"-"`
	MPIDR          uint64
	MIDR           uint64
	RunningState   uint32
	PSCIState      uint32
}

// ProcessorErrorInfo is one error information structure. ErrorInformation
// is the packed cache/TLB error word, built with CacheTLBInfo.
type ProcessorErrorInfo struct {
	Version              uint8
	Length               uint8
	ValidationBits       uint16
	Type                 uint8
	MultipleError        uint16
	Flags                uint8
	ErrorInformation     uint64
	VirtualFaultAddress  uint64
	PhysicalFaultAddress uint64
}

// CacheTLBInfo holds the named fields of the cache/TLB error structure.
// The wire form is a single 64 bit word; Pack and UnpackCacheTLBInfo
// convert between the two so the classification rules can be tested
// without depending on the packed layout.
type CacheTLBInfo struct {
	ValidationBits  uint16
	TransactionType uint8
	Operation       uint8
	Level           uint8
	ContextCorrupt  bool
	Corrected       bool
	PrecisePC       bool
	RestartablePC   bool
}

func boolBit(b bool, shift uint) uint64 {
	if b {
		return 1 << shift
	}
	return 0
}

// Pack composes the 64 bit cache/TLB error information word.
func (i CacheTLBInfo) Pack() uint64 {
	v := uint64(i.ValidationBits)
	v |= (uint64(i.TransactionType) & 0x3) << cacheTLBTransactionTypeShift
	v |= (uint64(i.Operation) & 0xF) << cacheTLBOperationShift
	v |= (uint64(i.Level) & 0x7) << cacheTLBLevelShift
	v |= boolBit(i.ContextCorrupt, cacheTLBContextCorruptShift)
	v |= boolBit(i.Corrected, cacheTLBCorrectedShift)
	v |= boolBit(i.PrecisePC, cacheTLBPrecisePCShift)
	v |= boolBit(i.RestartablePC, cacheTLBRestartablePCShift)
	return v
}

// UnpackCacheTLBInfo decodes a 64 bit cache/TLB error information word.
func UnpackCacheTLBInfo(v uint64) CacheTLBInfo {
	return CacheTLBInfo{
		ValidationBits:  uint16(v & 0xFFFF),
		TransactionType: uint8((v >> cacheTLBTransactionTypeShift) & 0x3),
		Operation:       uint8((v >> cacheTLBOperationShift) & 0xF),
		Level:           uint8((v >> cacheTLBLevelShift) & 0x7),
		ContextCorrupt:  v&(1<<cacheTLBContextCorruptShift) != 0,
		Corrected:       v&(1<<cacheTLBCorrectedShift) != 0,
		PrecisePC:       v&(1<<cacheTLBPrecisePCShift) != 0,
		RestartablePC:   v&(1<<cacheTLBRestartablePCShift) != 0,
	}
}

// ContextBlock is one context register block. Registers is the fixed
// union-sized array; register sets smaller than the array fill the leading
// words and leave the rest zero.
type ContextBlock struct {
	Version             uint16
	RegisterContextType uint16
	RegisterArraySize   uint32
	Registers           [GPRRegisterCount]uint64
}

// NewContextBlock builds a context block of the given type from the
// captured register words.
func NewContextBlock(contextType uint16, registers []uint64) ContextBlock {
	block := ContextBlock{
		RegisterContextType: contextType,
		RegisterArraySize:   ContextRegisterArraySize,
	}
	copy(block.Registers[:], registers)
	return block
}

// ProcessorSection is a complete ARM processor error section payload: the
// fixed info record, one error information structure and zero or more
// context blocks.
type ProcessorSection struct {
	Record   ProcessorErrorRecord
	Info     ProcessorErrorInfo
	Contexts []ContextBlock `json:",omitempty"`
}

// ProcessorSectionLength returns the serialized payload size for the
// given number of context blocks.
func ProcessorSectionLength(contexts int) uint32 {
	return ProcessorErrorRecordLength + ProcessorErrorInfoLength +
		uint32(contexts)*ContextBlockLength
}

// Length returns the serialized size of this section.
func (s *ProcessorSection) Length() uint32 {
	return ProcessorSectionLength(len(s.Contexts))
}

// Encode serializes the section payload.
func (s *ProcessorSection) Encode() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, &s.Record); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, &s.Info); err != nil {
		return nil, err
	}
	for i := range s.Contexts {
		if err := binary.Write(buf, binary.LittleEndian, &s.Contexts[i]); err != nil {
			return nil, err
		}
	}
	if uint32(buf.Len()) != s.Length() {
		return nil, fmt.Errorf("processor section serialized to %d bytes; want %d",
			buf.Len(), s.Length())
	}
	return buf.Bytes(), nil
}

// ParseProcessorSection decodes an ARM processor error section payload.
func ParseProcessorSection(b []byte) (*ProcessorSection, error) {
	if len(b) < ProcessorErrorRecordLength+ProcessorErrorInfoLength {
		return nil, fmt.Errorf("processor section too small: got %d bytes, want at least %d",
			len(b), ProcessorErrorRecordLength+ProcessorErrorInfoLength)
	}
	var section ProcessorSection
	r := bytes.NewReader(b)
	if err := binary.Read(r, binary.LittleEndian, &section.Record); err != nil {
		return nil, err
	}
	if section.Record.ErrInfoNum != 1 {
		return nil, fmt.Errorf("unsupported error info count %d; want 1", section.Record.ErrInfoNum)
	}
	if err := binary.Read(r, binary.LittleEndian, &section.Info); err != nil {
		return nil, err
	}
	// Context blocks are present only when the payload carries them; a
	// secure-state record declares ContextInfoNum without including the
	// blocks.
	for r.Len() >= ContextBlockLength {
		var block ContextBlock
		if err := binary.Read(r, binary.LittleEndian, &block); err != nil {
			return nil, err
		}
		section.Contexts = append(section.Contexts, block)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("trailing %d bytes after processor section", r.Len())
	}
	return &section, nil
}
