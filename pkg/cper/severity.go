// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cper

import "fmt"

// Severity is the classified severity of one hardware error event. It is
// richer than the wire enumeration: the overflow and latent variants fold
// into descriptor flags when encoded.
type Severity int

// Classified severities.
const (
	SeverityCorrected Severity = iota
	SeverityCorrectedOverflow
	SeverityLatent
	SeverityFatal
)

// Wire values of the ErrorSeverity fields, fixed by the generic error
// status enumeration.
const (
	WireSeverityRecoverable uint32 = 0
	WireSeverityFatal       uint32 = 1
	WireSeverityCorrected   uint32 = 2
	WireSeverityNone        uint32 = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityCorrected:
		return "Corrected"
	case SeverityCorrectedOverflow:
		return "CorrectedOverflow"
	case SeverityLatent:
		return "Latent"
	case SeverityFatal:
		return "Fatal"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Corrected reports whether the severity counts as a corrected error for
// the block status validity bits.
func (s Severity) Corrected() bool {
	return s == SeverityCorrected || s == SeverityCorrectedOverflow
}

// Wire returns the ErrorSeverity enumeration value written to the status
// block and the section descriptor. Latent errors are conveyed as
// recoverable plus the latent section flag.
func (s Severity) Wire() uint32 {
	switch s {
	case SeverityCorrected, SeverityCorrectedOverflow:
		return WireSeverityCorrected
	case SeverityLatent:
		return WireSeverityRecoverable
	case SeverityFatal:
		return WireSeverityFatal
	}
	return WireSeverityNone
}

// WireSeverityName returns the name of an ErrorSeverity enumeration value.
func WireSeverityName(v uint32) string {
	switch v {
	case WireSeverityRecoverable:
		return "Recoverable"
	case WireSeverityFatal:
		return "Fatal"
	case WireSeverityCorrected:
		return "Corrected"
	case WireSeverityNone:
		return "None"
	}
	return fmt.Sprintf("WireSeverity(%d)", v)
}

// SectionFlags returns the descriptor flag byte implied by the severity.
func (s Severity) SectionFlags() uint8 {
	switch s {
	case SeverityCorrectedOverflow:
		return SectionFlagOverflow
	case SeverityLatent:
		return SectionFlagLatentError
	}
	return 0
}
