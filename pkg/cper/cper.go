// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cper implements the Common Platform Error Record generic error
// status block: the block status header, the generic error data entry
// (section descriptor) and the section payloads for ARM processor and
// platform memory errors.
//
// The encoded layout is always [Header][Descriptor][Payload], contiguous,
// little-endian, no padding.
package cper

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/bytesextra"

	"github.com/openfirmware/hestkit/pkg/guid"
)

// Generic error status block constants.
const (
	// GenericErrorStatusLength is the byte size of the block status header.
	GenericErrorStatusLength = 20
	// GenericErrorDataLength is the byte size of one section descriptor.
	GenericErrorDataLength = 72
	// GenericErrorDataRevision is the descriptor revision written by this
	// codec.
	GenericErrorDataRevision = 0x300
)

// Block status bit assignments.
const (
	BlockStatusUncorrectableValid    = 1 << 0
	BlockStatusCorrectableValid      = 1 << 1
	BlockStatusMultipleUncorrectable = 1 << 2
	BlockStatusMultipleCorrectable   = 1 << 3

	blockStatusEntryCountShift = 4
	blockStatusEntryCountMask  = 0x3FF
)

// Section descriptor flag bits.
const (
	SectionFlagPrimary                = 1 << 0
	SectionFlagContainmentWarning     = 1 << 1
	SectionFlagReset                  = 1 << 2
	SectionFlagErrorThresholdExceeded = 1 << 3
	SectionFlagResourceNotAccessible  = 1 << 4
	SectionFlagLatentError            = 1 << 5
	SectionFlagPropagated             = 1 << 6
	SectionFlagOverflow               = 1 << 7
)

// Well-known section type GUIDs.
var (
	SectionTypeARMProcessor   = guid.MustParse("e19e3d16-bc11-11e4-9caa-c2051d5d46b0")
	SectionTypePlatformMemory = guid.MustParse("a5bc1114-6f64-4ede-b863-3e83ed7c83b1")
)

// SectionTypeNames holds human readable names of the supported section
// type GUIDs.
var SectionTypeNames = map[guid.GUID]string{
	*SectionTypeARMProcessor:   "ARM Processor Error",
	*SectionTypePlatformMemory: "Platform Memory Error",
}

// GenericErrorStatus is the block status header of an error status block.
type GenericErrorStatus struct {
	BlockStatus   uint32
	RawDataOffset uint32
	RawDataLength uint32
	DataLength    uint32
	ErrorSeverity uint32
}

// UncorrectableValid reports the uncorrectable-error-valid status bit.
func (s *GenericErrorStatus) UncorrectableValid() bool {
	return s.BlockStatus&BlockStatusUncorrectableValid != 0
}

// CorrectableValid reports the correctable-error-valid status bit.
func (s *GenericErrorStatus) CorrectableValid() bool {
	return s.BlockStatus&BlockStatusCorrectableValid != 0
}

// EntryCount returns the error data entry count sub-field.
func (s *GenericErrorStatus) EntryCount() int {
	return int((s.BlockStatus >> blockStatusEntryCountShift) & blockStatusEntryCountMask)
}

// GenericErrorData is the section descriptor preceding one section payload.
// Fields beyond those explicitly set by the codec stay zero.
type GenericErrorData struct {
	SectionType     guid.GUID
	ErrorSeverity   uint32
	Revision        uint16
	ValidationBits  uint8
	Flags           uint8
	ErrorDataLength uint32
	FruID           guid.GUID
	FruText         [20]byte
	Timestamp       uint64
}

// ErrorBlock is one decoded error status block.
type ErrorBlock struct {
	Header  GenericErrorStatus
	Entry   GenericErrorData
	Payload []byte `json:",omitempty"`
}

// blockStatus composes the block status word: exactly one of the
// correctable/uncorrectable validity bits, no multiple-error bits, entry
// count one.
func blockStatus(severity Severity) uint32 {
	status := uint32(1) << blockStatusEntryCountShift
	if severity.Corrected() {
		status |= BlockStatusCorrectableValid
	} else {
		status |= BlockStatusUncorrectableValid
	}
	return status
}

// EncodeErrorRecord serializes a block status header, one section
// descriptor and the already-classified section payload into region.
// The region must be at least GenericErrorStatusLength +
// GenericErrorDataLength + len(payload) bytes; the codec does not
// allocate and does not write anything on failure.
func EncodeErrorRecord(region []byte, severity Severity, sectionType guid.GUID, payload []byte) error {
	if region == nil {
		return fmt.Errorf("nil record region: %w", ErrInvalidParameter)
	}
	need := GenericErrorStatusLength + GenericErrorDataLength + len(payload)
	if len(region) < need {
		return fmt.Errorf("record region holds %d bytes, need %d: %w",
			len(region), need, ErrBufferTooSmall)
	}

	header := GenericErrorStatus{
		BlockStatus:   blockStatus(severity),
		RawDataOffset: GenericErrorStatusLength + GenericErrorDataLength,
		RawDataLength: 0,
		DataLength:    GenericErrorDataLength + uint32(len(payload)),
		ErrorSeverity: severity.Wire(),
	}
	entry := GenericErrorData{
		SectionType:     sectionType,
		ErrorSeverity:   severity.Wire(),
		Revision:        GenericErrorDataRevision,
		ValidationBits:  0,
		Flags:           severity.SectionFlags(),
		ErrorDataLength: uint32(len(payload)),
	}

	w := bytesextra.NewReadWriteSeeker(region[:need])
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("unable to write block status header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, &entry); err != nil {
		return fmt.Errorf("unable to write section descriptor: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("unable to write section payload: %w", err)
	}
	return nil
}

// ParseErrorBlock decodes an error status block from a byte buffer, as
// written by EncodeErrorRecord or read back from the firmware reserved
// region.
func ParseErrorBlock(b []byte) (*ErrorBlock, error) {
	if len(b) < GenericErrorStatusLength {
		return nil, fmt.Errorf("error status block too small: got %d bytes, want at least %d",
			len(b), GenericErrorStatusLength)
	}
	var block ErrorBlock
	r := bytes.NewReader(b)
	if err := binary.Read(r, binary.LittleEndian, &block.Header); err != nil {
		return nil, err
	}
	if block.Header.EntryCount() != 1 {
		return nil, fmt.Errorf("unsupported error data entry count %d; want 1",
			block.Header.EntryCount())
	}
	if err := binary.Read(r, binary.LittleEndian, &block.Entry); err != nil {
		return nil, fmt.Errorf("unable to read section descriptor: %w", err)
	}
	payloadLen := int(block.Entry.ErrorDataLength)
	off := GenericErrorStatusLength + GenericErrorDataLength
	if len(b) < off+payloadLen {
		return nil, fmt.Errorf("section payload truncated: descriptor declares %d bytes, %d available",
			payloadLen, len(b)-off)
	}
	block.Payload = b[off : off+payloadLen]
	return &block, nil
}

// Validate checks the offset/length invariants of a decoded block and
// aggregates every violation.
func (b *ErrorBlock) Validate() error {
	var result *multierror.Error

	if want := uint32(GenericErrorStatusLength + GenericErrorDataLength); b.Header.RawDataOffset != want {
		result = multierror.Append(result, fmt.Errorf(
			"raw data offset is %d; want %d", b.Header.RawDataOffset, want))
	}
	if want := uint32(GenericErrorDataLength + len(b.Payload)); b.Header.DataLength != want {
		result = multierror.Append(result, fmt.Errorf(
			"data length is %d; want %d", b.Header.DataLength, want))
	}
	if b.Entry.ErrorDataLength != uint32(len(b.Payload)) {
		result = multierror.Append(result, fmt.Errorf(
			"descriptor error data length is %d; payload holds %d bytes",
			b.Entry.ErrorDataLength, len(b.Payload)))
	}
	if b.Header.CorrectableValid() == b.Header.UncorrectableValid() {
		result = multierror.Append(result, fmt.Errorf(
			"exactly one of the correctable/uncorrectable validity bits must be set, status is %#x",
			b.Header.BlockStatus))
	}
	if b.Header.ErrorSeverity != b.Entry.ErrorSeverity {
		result = multierror.Append(result, fmt.Errorf(
			"header severity %d disagrees with descriptor severity %d",
			b.Header.ErrorSeverity, b.Entry.ErrorSeverity))
	}
	if b.Entry.Revision != GenericErrorDataRevision {
		result = multierror.Append(result, fmt.Errorf(
			"descriptor revision is %#x; want %#x", b.Entry.Revision, GenericErrorDataRevision))
	}
	if _, ok := SectionTypeNames[b.Entry.SectionType]; !ok {
		result = multierror.Append(result, fmt.Errorf(
			"unknown section type %s", b.Entry.SectionType))
	}

	return result.ErrorOrNil()
}

// SectionTypeName returns the human readable name of the block's section
// type GUID.
func (b *ErrorBlock) SectionTypeName() string {
	if name, ok := SectionTypeNames[b.Entry.SectionType]; ok {
		return name
	}
	return "Unknown"
}
