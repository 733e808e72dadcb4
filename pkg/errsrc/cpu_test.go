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

func encodeCPUSnapshot(t *testing.T, snapshot *CPUSnapshot) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, snapshot); err != nil {
		t.Fatalf("unable to encode cpu snapshot: %v", err)
	}
	if buf.Len() != CPUSnapshotSize {
		t.Fatalf("cpu snapshot encoded to %d bytes, want %d", buf.Len(), CPUSnapshotSize)
	}
	return buf.Bytes()
}

func testCPUSnapshot(errStatus, errMisc0 uint64, state SecurityState) *CPUSnapshot {
	snapshot := &CPUSnapshot{
		ErrStatus:     errStatus,
		ErrMisc0:      errMisc0,
		ErrAddr:       0x8000_2000,
		SecurityState: state,
	}
	snapshot.EL1[cper.EL1RegisterMIDRIndex] = 0x410FD490
	snapshot.EL1[cper.EL1RegisterMPIDRIndex] = 0x81000100
	return snapshot
}

func TestParseCPUSnapshotErrors(t *testing.T) {
	if _, err := ParseCPUSnapshot(nil); !errors.Is(err, cper.ErrInvalidParameter) {
		t.Errorf("ParseCPUSnapshot(nil) = %v, want ErrInvalidParameter", err)
	}
	if _, err := ParseCPUSnapshot(make([]byte, CPUSnapshotSize-1)); !errors.Is(err, cper.ErrBadBufferSize) {
		t.Errorf("ParseCPUSnapshot(short) = %v, want ErrBadBufferSize", err)
	}
}

func TestParseCPUSnapshotRoundTrip(t *testing.T) {
	snapshot := testCPUSnapshot(CPUErrStatusVBit|1<<24, 0x4, NonSecure)
	parsed, err := ParseCPUSnapshot(encodeCPUSnapshot(t, snapshot))
	if err != nil {
		t.Fatalf("ParseCPUSnapshot() = %v, want nil", err)
	}
	if *parsed != *snapshot {
		t.Errorf("round trip changed the snapshot:\ngot  %+v\nwant %+v", parsed, snapshot)
	}
}

func TestCPUSnapshotSeverity(t *testing.T) {
	tests := []struct {
		name      string
		errStatus uint64
		want      cper.Severity
	}{
		{"corrected", 1 << 24, cper.SeverityCorrected},
		{"corrected both bits", 3 << 24, cper.SeverityCorrected},
		{"corrected overflow", 1<<24 | CPUErrStatusOFBit, cper.SeverityCorrectedOverflow},
		{"deferred", CPUErrStatusDEBit, cper.SeverityLatent},
		{"uncorrected", CPUErrStatusVBit, cper.SeverityFatal},
		{"corrected wins over deferred", 1<<24 | CPUErrStatusDEBit, cper.SeverityCorrected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := testCPUSnapshot(tt.errStatus, 0, NonSecure)
			if got := snapshot.Severity(); got != tt.want {
				t.Errorf("Severity() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCPUSnapshotErrorType(t *testing.T) {
	tests := []struct {
		syndrome uint64
		want     uint8
	}{
		{0x00, cper.ProcessorErrorTypeCache},
		{0x07, cper.ProcessorErrorTypeCache},
		{0x08, cper.ProcessorErrorTypeTLB},
		{0x0F, cper.ProcessorErrorTypeTLB},
		{0xFF, cper.ProcessorErrorTypeTLB},
	}
	for _, tt := range tests {
		snapshot := testCPUSnapshot(tt.syndrome, 0, NonSecure)
		if got := snapshot.ErrorType(); got != tt.want {
			t.Errorf("ErrorType(syndrome %#x) = %d, want %d", tt.syndrome, got, tt.want)
		}
	}
}

func TestCPUSnapshotClassifySecurityState(t *testing.T) {
	misc0 := uint64(2 << CPUErrMisc0LevelShift)

	_, nonSecure := testCPUSnapshot(1<<24, misc0, NonSecure).Classify()
	if got := len(nonSecure.Contexts); got != CPUContextCount {
		t.Fatalf("non-secure context blocks = %d, want %d", got, CPUContextCount)
	}
	if got, want := nonSecure.Record.SectionLength, cper.ProcessorSectionLength(CPUContextCount); got != want {
		t.Errorf("non-secure SectionLength = %d, want %d", got, want)
	}

	_, secure := testCPUSnapshot(1<<24, misc0, Secure).Classify()
	if got := len(secure.Contexts); got != 0 {
		t.Fatalf("secure context blocks = %d, want 0", got)
	}
	if got, want := secure.Record.SectionLength, cper.ProcessorSectionLength(0); got != want {
		t.Errorf("secure SectionLength = %d, want %d", got, want)
	}
	// The declared context count never changes with security state.
	if secure.Record.ContextInfoNum != CPUContextCount {
		t.Errorf("secure ContextInfoNum = %d, want %d", secure.Record.ContextInfoNum, CPUContextCount)
	}
	if got, want := nonSecure.Record.SectionLength-secure.Record.SectionLength,
		uint32(CPUContextCount*cper.ContextBlockLength); got != want {
		t.Errorf("section length delta = %d, want %d", got, want)
	}
}

func TestCPUSnapshotClassifyFields(t *testing.T) {
	misc0 := uint64(3<<CPUErrMisc0LevelShift | 5<<CPUErrMisc0CECRShift)
	snapshot := testCPUSnapshot(1<<24|CPUErrStatusAVBit, misc0, NonSecure)

	severity, section := snapshot.Classify()
	if severity != cper.SeverityCorrected {
		t.Errorf("severity = %s, want Corrected", severity)
	}
	if section.Record.MPIDR != snapshot.EL1[cper.EL1RegisterMPIDRIndex] {
		t.Errorf("MPIDR = %#x, want %#x", section.Record.MPIDR, snapshot.EL1[cper.EL1RegisterMPIDRIndex])
	}
	if section.Record.MIDR != snapshot.EL1[cper.EL1RegisterMIDRIndex] {
		t.Errorf("MIDR = %#x, want %#x", section.Record.MIDR, snapshot.EL1[cper.EL1RegisterMIDRIndex])
	}
	if section.Record.RunningState != 1 || section.Record.PSCIState != 0 {
		t.Errorf("running state = %d/%d, want 1/0",
			section.Record.RunningState, section.Record.PSCIState)
	}
	if section.Info.MultipleError != 5 {
		t.Errorf("MultipleError = %d, want 5", section.Info.MultipleError)
	}
	if section.Info.Flags != cper.ProcessorFlagOverflow {
		t.Errorf("Flags = %#x, want overflow for a corrected error", section.Info.Flags)
	}
	if section.Info.PhysicalFaultAddress != snapshot.ErrAddr {
		t.Errorf("PhysicalFaultAddress = %#x, want %#x",
			section.Info.PhysicalFaultAddress, snapshot.ErrAddr)
	}
	info := cper.UnpackCacheTLBInfo(section.Info.ErrorInformation)
	if info.Level != 3 {
		t.Errorf("cache level = %d, want 3", info.Level)
	}
	if !info.Corrected {
		t.Error("corrected bit not set in the error information word")
	}

	if got, want := section.Contexts[0].RegisterContextType, uint16(cper.ContextTypeAArch64GPR); got != want {
		t.Errorf("context 0 type = %d, want %d", got, want)
	}
	if got, want := section.Contexts[1].RegisterContextType, uint16(cper.ContextTypeAArch64EL1); got != want {
		t.Errorf("context 1 type = %d, want %d", got, want)
	}
	if got, want := section.Contexts[2].RegisterContextType, uint16(cper.ContextTypeAArch64EL2); got != want {
		t.Errorf("context 2 type = %d, want %d", got, want)
	}
}

func TestCPUSnapshotDeferredSuppressesCount(t *testing.T) {
	misc0 := uint64(9 << CPUErrMisc0CECRShift)
	snapshot := testCPUSnapshot(CPUErrStatusDEBit, misc0, NonSecure)

	severity, section := snapshot.Classify()
	if severity != cper.SeverityLatent {
		t.Errorf("severity = %s, want Latent", severity)
	}
	if section.Info.MultipleError != 0 {
		t.Errorf("MultipleError = %d, want 0 for a deferred error", section.Info.MultipleError)
	}
	if section.Info.Flags != cper.ProcessorFlagFirstErrorCaptured {
		t.Errorf("Flags = %#x, want first error captured", section.Info.Flags)
	}
}

func TestCPUSourceHandleEvent(t *testing.T) {
	buf := make([]byte, ErrorStatusDataOffset+CPUStatusBlockLength+8)
	region, err := NewRegion(0xFF61_0000, buf, CPUStatusBlockLength)
	if err != nil {
		t.Fatalf("NewRegion() = %v, want nil", err)
	}
	source := NewCPUSource(Config{SourceID: 0, SDEIEvent: 600}, region)

	snapshot := testCPUSnapshot(1<<24, 2<<CPUErrMisc0LevelShift, NonSecure)
	if err := source.HandleEvent(encodeCPUSnapshot(t, snapshot)); err != nil {
		t.Fatalf("HandleEvent() = %v, want nil", err)
	}

	block, err := cper.ParseErrorBlock(region.StatusData())
	if err != nil {
		t.Fatalf("ParseErrorBlock() = %v, want nil", err)
	}
	if err := block.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if block.Entry.SectionType != *cper.SectionTypeARMProcessor {
		t.Errorf("section type = %s, want %s", block.Entry.SectionType, cper.SectionTypeARMProcessor)
	}
	section, err := cper.ParseProcessorSection(block.Payload)
	if err != nil {
		t.Fatalf("ParseProcessorSection() = %v, want nil", err)
	}
	if len(section.Contexts) != CPUContextCount {
		t.Errorf("context blocks = %d, want %d", len(section.Contexts), CPUContextCount)
	}

	if err := source.HandleEvent(nil); !errors.Is(err, cper.ErrInvalidParameter) {
		t.Errorf("HandleEvent(nil) = %v, want ErrInvalidParameter", err)
	}
}
