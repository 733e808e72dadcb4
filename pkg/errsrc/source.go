// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errsrc

import (
	"fmt"

	"github.com/openfirmware/hestkit/pkg/cper"
)

// Config holds the per-source fixed configuration: the error source id
// published in the descriptor and the SDEI event the OS is notified
// through. The values are platform constants, not runtime state.
type Config struct {
	SourceID  uint16
	SDEIEvent uint32
}

// Source is one hardware error source. Descriptors follows the
// query-length/fill protocol:
//
// Called with a nil buffer it returns the descriptor count and the total
// byte length for this source, with cper.ErrBufferTooSmall as the query
// signal rather than a failure.
//
// Called with a buffer of at least the reported length it initializes the
// source's firmware reserved region and serializes the descriptors into
// the buffer. A non-nil buffer below the reported length fails with
// cper.ErrBufferTooSmall without writing any state.
type Source interface {
	Name() string
	Descriptors(buf []byte) (count, length int, err error)
}

// fillDescriptors implements the shared query-length/fill contract over a
// single descriptor, which is what every registry instance currently
// publishes.
func fillDescriptors(buf []byte, region *Region, descriptor *Descriptor) (count, length int, err error) {
	count = 1
	length = count * DescriptorLength

	// The nil-buffer invocation only determines the size; the caller
	// allocates and calls again.
	if buf == nil {
		return count, length, cper.ErrBufferTooSmall
	}
	if len(buf) < length {
		return count, length, fmt.Errorf(
			"descriptor buffer holds %d bytes, need %d: %w",
			len(buf), length, cper.ErrBufferTooSmall)
	}

	// Prepare the firmware reserved region before publishing its
	// addresses.
	if err := region.Init(); err != nil {
		return count, length, err
	}

	encoded, err := descriptor.Encode()
	if err != nil {
		return count, length, err
	}
	copy(buf, encoded)
	return count, length, nil
}
