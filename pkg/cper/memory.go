// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cper

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MemorySectionLength is the byte size of a platform memory error section.
const MemorySectionLength = 80

// Platform memory error section validation bits.
const (
	MemoryErrorStatusValid         = 1 << 0
	MemoryPhysicalAddressValid     = 1 << 1
	MemoryPhysicalAddressMaskValid = 1 << 2
	MemoryNodeValid                = 1 << 3
	MemoryCardValid                = 1 << 4
	MemoryModuleValid              = 1 << 5
	MemoryBankValid                = 1 << 6
	MemoryDeviceValid              = 1 << 7
	MemoryRowValid                 = 1 << 8
	MemoryColumnValid              = 1 << 9
	MemoryBitPositionValid         = 1 << 10
	MemoryErrorTypeValid           = 1 << 14
)

// MemoryAddressMaskFull marks the full 48 bit physical address as
// significant.
const MemoryAddressMaskFull = 0xFFFFFFFFFFFF

// MemorySection is a platform memory error section payload. Only the
// fields named by the validation bits carry meaning; everything else is
// written as zero.
type MemorySection struct {
	ValidFields         uint64
	ErrorStatus         uint64
	PhysicalAddress     uint64
	PhysicalAddressMask uint64
	Node                uint16
	Card                uint16
	Module              uint16
	Bank                uint16
	Device              uint16
	Row                 uint16
	Column              uint16
	BitPosition         uint16
	RequestorID         uint64
	ResponderID         uint64
	TargetID            uint64
	ErrorType           uint8
	Extended            uint8
	RankNumber          uint16
	CardHandle          uint16
	ModuleHandle        uint16
}

// Encode serializes the section payload.
func (s *MemorySection) Encode() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, s); err != nil {
		return nil, err
	}
	if buf.Len() != MemorySectionLength {
		return nil, fmt.Errorf("memory section serialized to %d bytes; want %d",
			buf.Len(), MemorySectionLength)
	}
	return buf.Bytes(), nil
}

// ParseMemorySection decodes a platform memory error section payload.
func ParseMemorySection(b []byte) (*MemorySection, error) {
	if len(b) != MemorySectionLength {
		return nil, fmt.Errorf("memory section is %d bytes; want %d",
			len(b), MemorySectionLength)
	}
	var section MemorySection
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &section); err != nil {
		return nil, err
	}
	return &section, nil
}
