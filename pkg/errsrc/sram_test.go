// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errsrc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/openfirmware/hestkit/pkg/cper"
)

func encodeSRAMSnapshot(t *testing.T, snapshot *SRAMSnapshot) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, snapshot); err != nil {
		t.Fatalf("unable to encode sram snapshot: %v", err)
	}
	if buf.Len() != SRAMSnapshotSize {
		t.Fatalf("sram snapshot encoded to %d bytes, want %d", buf.Len(), SRAMSnapshotSize)
	}
	return buf.Bytes()
}

func TestParseSRAMSnapshotErrors(t *testing.T) {
	if _, err := ParseSRAMSnapshot(nil); !errors.Is(err, cper.ErrInvalidParameter) {
		t.Errorf("ParseSRAMSnapshot(nil) = %v, want ErrInvalidParameter", err)
	}
	if _, err := ParseSRAMSnapshot(make([]byte, SRAMSnapshotSize-1)); !errors.Is(err, cper.ErrBadBufferSize) {
		t.Errorf("ParseSRAMSnapshot(short) = %v, want ErrBadBufferSize", err)
	}
}

func TestSRAMSnapshotSeverity(t *testing.T) {
	tests := []struct {
		name      string
		errStatus uint32
		want      cper.Severity
	}{
		{"corrected", SRAMErrStatusCEBit, cper.SeverityCorrected},
		{"uncorrected", SRAMErrStatusUEBit, cper.SeverityFatal},
		{"corrected wins", SRAMErrStatusCEBit | SRAMErrStatusUEBit, cper.SeverityCorrected},
		{"neither bit", 0, cper.SeverityFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := &SRAMSnapshot{ErrStatus: tt.errStatus}
			if got := snapshot.Severity(); got != tt.want {
				t.Errorf("Severity() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSRAMSnapshotClassify(t *testing.T) {
	snapshot := &SRAMSnapshot{
		ErrStatus: SRAMErrStatusCEBit,
		ErrAddr:   0x2F00_0040,
		Bank:      SRAMBankNonSecure,
	}
	severity, section := snapshot.Classify()
	if severity != cper.SeverityCorrected {
		t.Errorf("severity = %s, want Corrected", severity)
	}
	if want := uint64(cper.MemoryPhysicalAddressValid | cper.MemoryPhysicalAddressMaskValid); section.ValidFields != want {
		t.Errorf("ValidFields = %#x, want %#x", section.ValidFields, want)
	}
	if section.PhysicalAddress != uint64(snapshot.ErrAddr) {
		t.Errorf("PhysicalAddress = %#x, want %#x", section.PhysicalAddress, snapshot.ErrAddr)
	}
	if section.PhysicalAddressMask != cper.MemoryAddressMaskFull {
		t.Errorf("PhysicalAddressMask = %#x, want %#x",
			section.PhysicalAddressMask, uint64(cper.MemoryAddressMaskFull))
	}
}

func TestSRAMSourceHandleEvent(t *testing.T) {
	buf := make([]byte, ErrorStatusDataOffset+SRAMStatusBlockLength+8)
	region, err := NewRegion(0xFF61_1000, buf, SRAMStatusBlockLength)
	if err != nil {
		t.Fatalf("NewRegion() = %v, want nil", err)
	}
	source := NewSRAMSource(Config{SourceID: 1, SDEIEvent: 804}, region)

	// Both banks produce the identical record shape.
	for _, bank := range []uint32{SRAMBankSecure, SRAMBankNonSecure} {
		snapshot := &SRAMSnapshot{
			ErrStatus: SRAMErrStatusUEBit,
			ErrAddr:   0x100,
			Bank:      bank,
		}
		if err := source.HandleEvent(encodeSRAMSnapshot(t, snapshot)); err != nil {
			t.Fatalf("HandleEvent(bank %d) = %v, want nil", bank, err)
		}

		block, err := cper.ParseErrorBlock(region.StatusData())
		if err != nil {
			t.Fatalf("ParseErrorBlock() = %v, want nil", err)
		}
		if err := block.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
		if block.Entry.SectionType != *cper.SectionTypePlatformMemory {
			t.Errorf("section type = %s, want %s",
				block.Entry.SectionType, cper.SectionTypePlatformMemory)
		}
		if block.Header.ErrorSeverity != cper.WireSeverityFatal {
			t.Errorf("severity = %d, want %d", block.Header.ErrorSeverity, cper.WireSeverityFatal)
		}
		if got, want := len(block.Payload), cper.MemorySectionLength; got != want {
			t.Errorf("payload = %d bytes, want %d", got, want)
		}
		section, err := cper.ParseMemorySection(block.Payload)
		if err != nil {
			t.Fatalf("ParseMemorySection() = %v, want nil", err)
		}
		if section.PhysicalAddress != 0x100 {
			t.Errorf("PhysicalAddress = %#x, want 0x100", section.PhysicalAddress)
		}
	}

	if err := source.HandleEvent(nil); !errors.Is(err, cper.ErrInvalidParameter) {
		t.Errorf("HandleEvent(nil) = %v, want ErrInvalidParameter", err)
	}
}
