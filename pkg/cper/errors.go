// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cper

import "errors"

// Status errors shared by the record codec and the error source layer.
// They mirror the firmware status codes the record consumers expect.
var (
	// ErrInvalidParameter reports a nil or missing required argument.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrBufferTooSmall reports a caller-supplied buffer below the
	// required minimum. The descriptor registry also returns it from a
	// length query as a "not an error, a signal" sentinel.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrBadBufferSize reports an input buffer whose declared size does
	// not cover the fixed input structure.
	ErrBadBufferSize = errors.New("bad buffer size")
)
