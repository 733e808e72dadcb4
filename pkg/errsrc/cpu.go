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

// SecurityState tags the security state the CPU was in when the error was
// captured. The values match the context buffer encoding delivered by the
// platform firmware.
type SecurityState uint64

// Security states.
const (
	Secure    SecurityState = 0
	NonSecure SecurityState = 1
)

func (s SecurityState) String() string {
	if s == Secure {
		return "Secure"
	}
	return "NonSecure"
}

// CPU error record status register bit fields.
const (
	CPUErrStatusSERRMask = 0xFF    // serr syndrome code, bits 0..7
	CPUErrStatusPNBit    = 1 << 22 // poison
	CPUErrStatusDEBit    = 1 << 23 // deferred error
	CPUErrStatusCEMask   = 3 << 24 // corrected error
	CPUErrStatusMVBit    = 1 << 26 // misc registers valid
	CPUErrStatusOFBit    = 1 << 27 // sticky overflow
	CPUErrStatusVBit     = 1 << 30 // status valid
	CPUErrStatusAVBit    = 1 << 31 // address valid
)

// CPUSyndromeTLBBoundary separates cache-class from TLB-class serr
// syndrome codes: codes below it are cache errors, the boundary value and
// above are TLB errors.
const CPUSyndromeTLBBoundary = 0x08

// CPU error record misc0 register bit fields.
const (
	CPUErrMisc0LevelMask  = 0xE // bits 1..3
	CPUErrMisc0LevelShift = 1
	CPUErrMisc0CECRMask   = 0xFF00000000 // corrected error count, bits 32..39
	CPUErrMisc0CECRShift  = 32
)

// CPUContextCount is the number of context register blocks included in a
// non-secure processor error section: general purpose, EL1 and EL2
// register sets.
const CPUContextCount = 3

// CPUSnapshotSize is the byte size of the fixed context buffer the
// platform delivers on a CPU error event.
const CPUSnapshotSize = 4*8 +
	(cper.GPRRegisterCount+cper.EL1RegisterCount+cper.EL2RegisterCount+cper.EL3RegisterCount)*8

// CPUSnapshot holds the raw register values captured at the moment of a
// CPU cache/TLB error event. It exists only for the duration of one
// handler invocation.
type CPUSnapshot struct {
	ErrStatus     uint64
	ErrMisc0      uint64
	ErrAddr       uint64
	SecurityState SecurityState
	GPR           [cper.GPRRegisterCount]uint64
	EL1           [cper.EL1RegisterCount]uint64
	EL2           [cper.EL2RegisterCount]uint64
	EL3           [cper.EL3RegisterCount]uint64
}

// ParseCPUSnapshot validates and decodes the context buffer delivered on
// a CPU error event. It fails before any classification when the buffer
// is nil or smaller than the fixed structure size.
func ParseCPUSnapshot(b []byte) (*CPUSnapshot, error) {
	if b == nil {
		return nil, fmt.Errorf("nil cpu context buffer: %w", cper.ErrInvalidParameter)
	}
	if len(b) < CPUSnapshotSize {
		return nil, fmt.Errorf("cpu context buffer holds %d bytes, need %d: %w",
			len(b), CPUSnapshotSize, cper.ErrBadBufferSize)
	}
	var snapshot CPUSnapshot
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// corrected reports whether the snapshot carries a corrected error.
func (s *CPUSnapshot) corrected() bool {
	return s.ErrStatus&CPUErrStatusCEMask != 0
}

// Severity derives the classified severity from the status register:
// the correctable test runs first; a correctable error with the sticky
// overflow bit becomes a corrected-overflow; a non-correctable error with
// the deferred bit is latent, anything else uncorrected is fatal.
func (s *CPUSnapshot) Severity() cper.Severity {
	if s.corrected() {
		if s.ErrStatus&CPUErrStatusOFBit != 0 {
			return cper.SeverityCorrectedOverflow
		}
		return cper.SeverityCorrected
	}
	if s.ErrStatus&CPUErrStatusDEBit != 0 {
		return cper.SeverityLatent
	}
	return cper.SeverityFatal
}

// ErrorType classifies the serr syndrome code as a cache or TLB error.
func (s *CPUSnapshot) ErrorType() uint8 {
	if s.ErrStatus&CPUErrStatusSERRMask < CPUSyndromeTLBBoundary {
		return cper.ProcessorErrorTypeCache
	}
	return cper.ProcessorErrorTypeTLB
}

// Classify maps the snapshot into a classified severity and an ARM
// processor error section. Context register blocks are included only for
// non-secure errors; a secure-state error must never leak secure world
// registers to the OS, so the blocks are physically absent from the
// payload and from every declared length.
func (s *CPUSnapshot) Classify() (cper.Severity, *cper.ProcessorSection) {
	severity := s.Severity()
	errorType := s.ErrorType()

	contexts := 0
	if s.SecurityState == NonSecure {
		contexts = CPUContextCount
	}
	sectionLength := cper.ProcessorSectionLength(contexts)

	section := &cper.ProcessorSection{
		Record: cper.ProcessorErrorRecord{
			ValidFields: cper.ProcessorRecordMPIDRValid |
				cper.ProcessorRecordRunningStateValid,
			ErrInfoNum:     1,
			ContextInfoNum: CPUContextCount,
			SectionLength:  sectionLength,
			MPIDR:          s.EL1[cper.EL1RegisterMPIDRIndex],
			MIDR:           s.EL1[cper.EL1RegisterMIDRIndex],
			RunningState:   1,
			PSCIState:      0,
		},
		Info: cper.ProcessorErrorInfo{
			Version: 0,
			Length:  cper.ProcessorErrorInfoLength,
			ValidationBits: cper.ProcessorInfoMultipleErrorValid |
				cper.ProcessorInfoFlagsValid |
				cper.ProcessorInfoErrorInfoValid |
				cper.ProcessorInfoPhysicalAddrValid,
			Type:          errorType,
			MultipleError: s.multipleErrorCount(),
			Flags:         s.errorInfoFlags(),
			ErrorInformation: cper.CacheTLBInfo{
				ValidationBits: cper.CacheTLBTransactionTypeValid |
					cper.CacheTLBOperationValid |
					cper.CacheTLBLevelValid |
					cper.CacheTLBContextCorruptValid |
					cper.CacheTLBCorrectedValid,
				TransactionType: cper.TransactionTypeGeneric,
				Operation:       cper.OperationGenericError,
				Level:           uint8((s.ErrMisc0 & CPUErrMisc0LevelMask) >> CPUErrMisc0LevelShift),
				Corrected:       s.corrected(),
			}.Pack(),
			// The architecture does not expose a virtual fault address
			// here.
			VirtualFaultAddress:  0,
			PhysicalFaultAddress: s.ErrAddr,
		},
	}

	if contexts > 0 {
		section.Contexts = []cper.ContextBlock{
			cper.NewContextBlock(cper.ContextTypeAArch64GPR, s.GPR[:]),
			cper.NewContextBlock(cper.ContextTypeAArch64EL1, s.EL1[:]),
			cper.NewContextBlock(cper.ContextTypeAArch64EL2, s.EL2[:]),
		}
	}

	return severity, section
}

// multipleErrorCount returns the corrected error counter from misc0, or
// zero when the error is deferred.
func (s *CPUSnapshot) multipleErrorCount() uint16 {
	if s.ErrStatus&CPUErrStatusDEBit != 0 {
		return 0
	}
	return uint16((s.ErrMisc0 & CPUErrMisc0CECRMask) >> CPUErrMisc0CECRShift)
}

// errorInfoFlags selects overflow for corrected errors and
// first-error-captured otherwise; the two are mutually exclusive.
func (s *CPUSnapshot) errorInfoFlags() uint8 {
	if s.corrected() {
		return cper.ProcessorFlagOverflow
	}
	return cper.ProcessorFlagFirstErrorCaptured
}

// CPUSource is the CPU cache/TLB error source: it owns the CPU firmware
// reserved region, classifies delivered snapshots into it and publishes
// the matching GHESv2 descriptor.
type CPUSource struct {
	config Config
	region *Region
}

// CPUStatusBlockLength is the worst-case error status block size of the
// CPU source: a non-secure record with all context blocks.
const CPUStatusBlockLength = cper.GenericErrorStatusLength +
	cper.GenericErrorDataLength +
	cper.ProcessorErrorRecordLength + cper.ProcessorErrorInfoLength +
	CPUContextCount*cper.ContextBlockLength

// NewCPUSource builds the CPU error source over its reserved region.
func NewCPUSource(config Config, region *Region) *CPUSource {
	return &CPUSource{config: config, region: region}
}

// Name implements Source.
func (s *CPUSource) Name() string {
	return "cpu"
}

// Region returns the source's firmware reserved region.
func (s *CPUSource) Region() *Region {
	return s.region
}

// HandleEvent processes one CPU error event. The buffer carries the fixed
// size CPU context structure; on success the error status block of the
// source's region holds the encoded record. The host dispatcher must
// serialize invocations for this source.
func (s *CPUSource) HandleEvent(buf []byte) error {
	snapshot, err := ParseCPUSnapshot(buf)
	if err != nil {
		return err
	}

	severity, section := snapshot.Classify()
	log.Debugf("cpu error event: severity=%s type=%d state=%s",
		severity, snapshot.ErrorType(), snapshot.SecurityState)

	payload, err := section.Encode()
	if err != nil {
		return fmt.Errorf("unable to encode processor section: %w", err)
	}
	return cper.EncodeErrorRecord(
		s.region.StatusData(), severity, *cper.SectionTypeARMProcessor, payload)
}

// Descriptors implements the query-length/fill descriptor protocol for
// the CPU source; see Source.
func (s *CPUSource) Descriptors(buf []byte) (count, length int, err error) {
	return fillDescriptors(buf, s.region, s.descriptor())
}

func (s *CPUSource) descriptor() *Descriptor {
	return &Descriptor{
		Type:                   GHESv2Type,
		SourceID:               s.config.SourceID,
		RelatedSourceID:        RelatedSourceNone,
		Enabled:                1,
		RecordsToPreAllocate:   1,
		MaxSectionsPerRecord:   1,
		MaxRawDataLength:       cper.ProcessorSectionLength(CPUContextCount),
		ErrorStatusAddress:     NewMemoryGAS64(s.region.StatusRegisterAddress()),
		Notification:           NewSDEINotification(s.config.SDEIEvent),
		ErrorStatusBlockLength: CPUStatusBlockLength,
		ReadAckRegister:        NewMemoryGAS64(s.region.AckRegisterAddress()),
	}
}
