// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errsrc

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/openfirmware/hestkit/pkg/cper"
	"github.com/openfirmware/hestkit/pkg/log"
)

// SRAM ECC error status bit fields.
const (
	SRAMErrStatusCEBit = 1 << 0 // corrected error
	SRAMErrStatusUEBit = 1 << 1 // uncorrectable error
)

// SRAMSnapshotSize is the byte size of the buffer delivered on a base
// element RAM error event.
const SRAMSnapshotSize = 12

// SRAM bank discriminants. Two hardware instances exist; they differ only
// in their register base, not in record shape.
const (
	SRAMBankSecure    = 0
	SRAMBankNonSecure = 1
)

// SRAMSnapshot holds the pre-packaged ECC error information of one base
// element RAM error event.
type SRAMSnapshot struct {
	ErrStatus uint32
	ErrAddr   uint32
	Bank      uint32
}

// ParseSRAMSnapshot validates and decodes the buffer delivered on a base
// element RAM error event.
func ParseSRAMSnapshot(b []byte) (*SRAMSnapshot, error) {
	if b == nil {
		return nil, fmt.Errorf("nil sram error buffer: %w", cper.ErrInvalidParameter)
	}
	if len(b) < SRAMSnapshotSize {
		return nil, fmt.Errorf("sram error buffer holds %d bytes, need %d: %w",
			len(b), SRAMSnapshotSize, cper.ErrBadBufferSize)
	}
	var snapshot SRAMSnapshot
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Severity derives the classified severity: the corrected bit is tested
// first, anything else is fatal.
func (s *SRAMSnapshot) Severity() cper.Severity {
	if s.ErrStatus&SRAMErrStatusCEBit != 0 {
		return cper.SeverityCorrected
	}
	return cper.SeverityFatal
}

// Classify maps the snapshot into a classified severity and a platform
// memory error section carrying the faulting physical address and a full
// width address mask.
func (s *SRAMSnapshot) Classify() (cper.Severity, *cper.MemorySection) {
	section := &cper.MemorySection{
		ValidFields: cper.MemoryPhysicalAddressValid |
			cper.MemoryPhysicalAddressMaskValid,
		PhysicalAddress:     uint64(s.ErrAddr),
		PhysicalAddressMask: cper.MemoryAddressMaskFull,
	}
	return s.Severity(), section
}

// SRAMStatusBlockLength is the error status block size of the SRAM
// source.
const SRAMStatusBlockLength = cper.GenericErrorStatusLength +
	cper.GenericErrorDataLength + cper.MemorySectionLength

// SRAMSource is the base element RAM ECC error source: it owns the SRAM
// firmware reserved region, classifies delivered error information into
// it and publishes the matching GHESv2 descriptor.
type SRAMSource struct {
	config Config
	region *Region
}

// NewSRAMSource builds the SRAM error source over its reserved region.
func NewSRAMSource(config Config, region *Region) *SRAMSource {
	return &SRAMSource{config: config, region: region}
}

// Name implements Source.
func (s *SRAMSource) Name() string {
	return "sram"
}

// Region returns the source's firmware reserved region.
func (s *SRAMSource) Region() *Region {
	return s.region
}

// HandleEvent processes one base element RAM error event. The record
// shape is identical for both banks; the discriminant only tells which
// hardware instance raised the event.
func (s *SRAMSource) HandleEvent(buf []byte) error {
	snapshot, err := ParseSRAMSnapshot(buf)
	if err != nil {
		return err
	}

	severity, section := snapshot.Classify()
	log.Debugf("sram error event: severity=%s bank=%d addr=%#x",
		severity, snapshot.Bank, snapshot.ErrAddr)

	payload, err := section.Encode()
	if err != nil {
		return fmt.Errorf("unable to encode memory section: %w", err)
	}
	return cper.EncodeErrorRecord(
		s.region.StatusData(), severity, *cper.SectionTypePlatformMemory, payload)
}

// Descriptors implements the query-length/fill descriptor protocol for
// the SRAM source; see Source.
func (s *SRAMSource) Descriptors(buf []byte) (count, length int, err error) {
	return fillDescriptors(buf, s.region, s.descriptor())
}

func (s *SRAMSource) descriptor() *Descriptor {
	return &Descriptor{
		Type:                   GHESv2Type,
		SourceID:               s.config.SourceID,
		RelatedSourceID:        RelatedSourceNone,
		Enabled:                1,
		RecordsToPreAllocate:   1,
		MaxSectionsPerRecord:   1,
		MaxRawDataLength:       cper.MemorySectionLength,
		ErrorStatusAddress:     NewMemoryGAS64(s.region.StatusRegisterAddress()),
		Notification:           NewSDEINotification(s.config.SDEIEvent),
		ErrorStatusBlockLength: SRAMStatusBlockLength,
		ReadAckRegister:        NewMemoryGAS64(s.region.AckRegisterAddress()),
	}
}
