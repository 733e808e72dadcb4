// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errsrc implements the firmware error sources: classification of
// raw hardware error snapshots into CPER sections, the firmware reserved
// error status regions, and the GHESv2 error source descriptor registry
// consumed by the HEST builder.
package errsrc

import (
	"encoding/binary"
	"fmt"

	"github.com/xaionaro-go/bytesextra"

	"github.com/openfirmware/hestkit/pkg/cper"
)

// Offsets within the firmware reserved memory of one error source. The
// region conveys the error data to the OS at runtime:
//   - Read Ack Register: holds the physical address of the Read Ack Data.
//   - Error Status Register: holds the physical address of the error
//     status block (the CPER record).
//   - Error Status Data: the error status block itself.
//   - Read Ack Data.
const (
	ReadAckRegisterOffset     = 0
	ErrorStatusRegisterOffset = 8
	ErrorStatusDataOffset     = 16
)

// Region is the firmware reserved memory block of one error source. It is
// owned exclusively by the error handling subsystem; the OS only reads it
// after learning its address from the source descriptor. In-place rewrites
// for the same source must be serialized by the host dispatcher.
type Region struct {
	base           uint64
	buf            []byte
	statusBlockLen uint32
}

// NewRegion wraps the reserved memory block backing buf, published to the
// OS at physical address base. statusBlockLen is the worst-case error
// status block size of the owning source; the read ack data lives right
// after it.
func NewRegion(base uint64, buf []byte, statusBlockLen uint32) (*Region, error) {
	if buf == nil {
		return nil, fmt.Errorf("nil region buffer: %w", cper.ErrInvalidParameter)
	}
	need := ErrorStatusDataOffset + int(statusBlockLen) + 8
	if len(buf) < need {
		return nil, fmt.Errorf("region holds %d bytes, need %d: %w",
			len(buf), need, cper.ErrBufferTooSmall)
	}
	return &Region{base: base, buf: buf, statusBlockLen: statusBlockLen}, nil
}

// Base returns the physical address the region is published at.
func (r *Region) Base() uint64 {
	return r.base
}

// StatusRegisterAddress returns the physical address of the error status
// register cell.
func (r *Region) StatusRegisterAddress() uint64 {
	return r.base + ErrorStatusRegisterOffset
}

// AckRegisterAddress returns the physical address of the read ack
// register cell.
func (r *Region) AckRegisterAddress() uint64 {
	return r.base + ReadAckRegisterOffset
}

// StatusData returns the error status block portion of the region, the
// record codec's output buffer.
func (r *Region) StatusData() []byte {
	return r.buf[ErrorStatusDataOffset : ErrorStatusDataOffset+int(r.statusBlockLen)]
}

// Init zeroes the whole region and initializes the ack and status
// register cells with the physical addresses of the read ack data and the
// error status block. Expected to run exactly once at boot, before any
// error can be classified into the region.
func (r *Region) Init() error {
	for i := range r.buf {
		r.buf[i] = 0
	}
	w := bytesextra.NewReadWriteSeeker(r.buf)
	ackData := r.base + ErrorStatusDataOffset + uint64(r.statusBlockLen)
	if err := binary.Write(w, binary.LittleEndian, ackData); err != nil {
		return fmt.Errorf("unable to initialize read ack register: %w", err)
	}
	statusData := r.base + ErrorStatusDataOffset
	if err := binary.Write(w, binary.LittleEndian, statusData); err != nil {
		return fmt.Errorf("unable to initialize error status register: %w", err)
	}
	return nil
}
