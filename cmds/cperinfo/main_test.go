// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"strings"
	"testing"

	"github.com/openfirmware/hestkit/pkg/cper"
)

func encodedMemoryBlock(t *testing.T) []byte {
	t.Helper()
	section := &cper.MemorySection{
		ValidFields: cper.MemoryPhysicalAddressValid |
			cper.MemoryPhysicalAddressMaskValid,
		PhysicalAddress:     0x2F000040,
		PhysicalAddressMask: cper.MemoryAddressMaskFull,
	}
	payload, err := section.Encode()
	if err != nil {
		t.Fatal(err)
	}
	region := make([]byte, cper.GenericErrorStatusLength+cper.GenericErrorDataLength+len(payload))
	if err := cper.EncodeErrorRecord(region, cper.SeverityCorrected,
		*cper.SectionTypePlatformMemory, payload); err != nil {
		t.Fatal(err)
	}
	return region
}

func TestDecode(t *testing.T) {
	rec, err := decode(encodedMemoryBlock(t))
	if err != nil {
		t.Fatalf("decode() = %v, want nil", err)
	}
	if rec.Section != "Platform Memory Error" {
		t.Errorf("Section = %q, want Platform Memory Error", rec.Section)
	}
	if rec.Memory == nil || rec.ARM != nil {
		t.Fatalf("decode() parsed the wrong section: memory=%v arm=%v", rec.Memory, rec.ARM)
	}
	if rec.Memory.PhysicalAddress != 0x2F000040 {
		t.Errorf("PhysicalAddress = %#x, want 0x2f000040", rec.Memory.PhysicalAddress)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := decode(make([]byte, 4)); err == nil {
		t.Error("decode(garbage) = nil, want error")
	}
}

func TestSummary(t *testing.T) {
	rec, err := decode(encodedMemoryBlock(t))
	if err != nil {
		t.Fatalf("decode() = %v, want nil", err)
	}
	s := summary(rec)
	for _, want := range []string{
		"Platform Memory Error",
		"Severity            : Corrected",
		"Physical Address    : 0x2f000040",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}
