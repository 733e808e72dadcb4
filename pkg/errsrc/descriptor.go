// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errsrc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// DescriptorLength is the byte size of one serialized GHESv2 error source
// descriptor.
const DescriptorLength = 92

// GHESv2Type is the error source descriptor type value for Generic
// Hardware Error Source version 2.
const GHESv2Type = 10

// RelatedSourceNone marks a descriptor that does not relate to another
// error source.
const RelatedSourceNone = 0xFFFF

// Generic address structure constants.
const (
	GASLength = 12

	AddressSpaceSystemMemory = 0

	AccessSizeByte  = 1
	AccessSizeWord  = 2
	AccessSizeDWord = 3
	AccessSizeQWord = 4
)

// Hardware error notification types.
const (
	NotificationPolled                     = 0
	NotificationExternalInterrupt          = 1
	NotificationSCI                        = 3
	NotificationGSIV                       = 10
	NotificationSoftwareDelegatedException = 11
)

// NotificationLength is the byte size of the hardware error notification
// structure.
const NotificationLength = 28

// GAS is the ACPI generic address structure.
type GAS struct {
	AddressSpaceID    uint8
	RegisterBitWidth  uint8
	RegisterBitOffset uint8
	AccessSize        uint8
	Address           uint64
}

// NewMemoryGAS64 returns a system-memory GAS addressing one 64 bit
// register cell.
func NewMemoryGAS64(address uint64) GAS {
	return GAS{
		AddressSpaceID:   AddressSpaceSystemMemory,
		RegisterBitWidth: 64,
		AccessSize:       AccessSizeQWord,
		Address:          address,
	}
}

// Notification is the hardware error notification structure. For SDEI
// notified sources Vector carries the platform event identifier.
type Notification struct {
	Type                           uint8
	Length                         uint8
	ConfigWriteEnable              uint16
	PollInterval                   uint32
	Vector                         uint32
	SwitchToPollingThresholdValue  uint32
	SwitchToPollingThresholdWindow uint32
	ErrorThresholdValue            uint32
	ErrorThresholdWindow           uint32
}

// NewSDEINotification returns a software delegated exception notification
// for the given platform event.
func NewSDEINotification(event uint32) Notification {
	return Notification{
		Type:   NotificationSoftwareDelegatedException,
		Length: NotificationLength,
		Vector: event,
	}
}

// Descriptor is one GHESv2 error source descriptor, as serialized into
// the platform error source table.
type Descriptor struct {
	Type                   uint16
	SourceID               uint16
	RelatedSourceID        uint16
	Flags                  uint8
	Enabled                uint8
	RecordsToPreAllocate   uint32
	MaxSectionsPerRecord   uint32
	MaxRawDataLength       uint32
	ErrorStatusAddress     GAS
	Notification           Notification
	ErrorStatusBlockLength uint32
	ReadAckRegister        GAS
	ReadAckPreserve        uint64
	ReadAckWrite           uint64
}

// Encode serializes the descriptor.
func (d *Descriptor) Encode() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, d); err != nil {
		return nil, err
	}
	if buf.Len() != DescriptorLength {
		return nil, fmt.Errorf("descriptor serialized to %d bytes; want %d",
			buf.Len(), DescriptorLength)
	}
	return buf.Bytes(), nil
}

// ParseDescriptor decodes one GHESv2 error source descriptor.
func ParseDescriptor(b []byte) (*Descriptor, error) {
	if len(b) < DescriptorLength {
		return nil, fmt.Errorf("descriptor is %d bytes; want at least %d",
			len(b), DescriptorLength)
	}
	var d Descriptor
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &d); err != nil {
		return nil, err
	}
	if d.Type != GHESv2Type {
		return nil, fmt.Errorf("unsupported error source descriptor type %d; want %d",
			d.Type, GHESv2Type)
	}
	return &d, nil
}
