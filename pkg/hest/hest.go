// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hest builds the Hardware Error Source Table from the error
// source descriptor registries, and the companion SDEI table announcing
// the notification mechanism. Only the wire format is produced; table
// installation belongs to the hosting firmware.
package hest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/openfirmware/hestkit/pkg/cper"
	"github.com/openfirmware/hestkit/pkg/errsrc"
	"github.com/openfirmware/hestkit/pkg/log"
)

// ACPI description header constants.
const (
	HeaderLength = 36

	HESTRevision = 1
	SDEIRevision = 1
)

// Table signatures.
var (
	HESTSignature = [4]byte{'H', 'E', 'S', 'T'}
	SDEISignature = [4]byte{'S', 'D', 'E', 'I'}
)

// Header is the ACPI description header common to both tables.
type Header struct {
	Signature       [4]byte
	Length          uint32
	Revision        uint8
	Checksum        uint8
	OEMID           [6]byte
	OEMTableID      [8]byte
	OEMRevision     uint32
	CreatorID       [4]byte
	CreatorRevision uint32
}

// TableInfo carries the OEM identification written into the table
// headers.
type TableInfo struct {
	OEMID           string
	OEMTableID      string
	OEMRevision     uint32
	CreatorID       string
	CreatorRevision uint32
}

// DefaultTableInfo is used when the caller does not provide its own
// identification.
var DefaultTableInfo = TableInfo{
	OEMID:           "HSTKIT",
	OEMTableID:      "HESTKIT",
	OEMRevision:     1,
	CreatorID:       "HKIT",
	CreatorRevision: 1,
}

func (info TableInfo) header(signature [4]byte, revision uint8) Header {
	h := Header{
		Signature:       signature,
		Revision:        revision,
		OEMRevision:     info.OEMRevision,
		CreatorRevision: info.CreatorRevision,
	}
	copy(h.OEMID[:], info.OEMID)
	copy(h.OEMTableID[:], info.OEMTableID)
	copy(h.CreatorID[:], info.CreatorID)
	return h
}

// checksum returns the value that makes the byte sum of the table zero
// mod 256, assuming the checksum field currently holds zero.
func checksum(table []byte) uint8 {
	var sum uint8
	for _, b := range table {
		sum += b
	}
	return uint8(0) - sum
}

// Builder aggregates error source descriptors into a HEST table.
type Builder struct {
	info    TableInfo
	sources []errsrc.Source
}

// NewBuilder returns a builder stamping the given identification into the
// generated tables.
func NewBuilder(info TableInfo) *Builder {
	return &Builder{info: info}
}

// AddSource registers an error source registry with the builder.
func (b *Builder) AddSource(source errsrc.Source) {
	b.sources = append(b.sources, source)
}

// collect runs the query-length/fill protocol against one source and
// returns its descriptor bytes.
func collect(source errsrc.Source) (count int, data []byte, err error) {
	count, length, err := source.Descriptors(nil)
	if !errors.Is(err, cper.ErrBufferTooSmall) {
		// The length query signals via ErrBufferTooSmall; anything else
		// is a real failure.
		return 0, nil, fmt.Errorf("descriptor length query for %q failed: %v", source.Name(), err)
	}

	buf := make([]byte, length)
	if count, length, err = source.Descriptors(buf); err != nil {
		return 0, nil, fmt.Errorf("descriptor fill for %q failed: %w", source.Name(), err)
	}
	return count, buf[:length], nil
}

// Build queries every registered source, initializes its reserved region
// through the fill call, and returns the serialized HEST table.
func (b *Builder) Build() ([]byte, error) {
	if len(b.sources) == 0 {
		return nil, fmt.Errorf("no error sources registered: %w", cper.ErrInvalidParameter)
	}

	var sourceCount uint32
	descriptors := &bytes.Buffer{}
	for _, source := range b.sources {
		count, data, err := collect(source)
		if err != nil {
			return nil, err
		}
		log.Debugf("collected %d descriptor(s) from error source %q", count, source.Name())
		sourceCount += uint32(count)
		descriptors.Write(data)
	}

	header := b.info.header(HESTSignature, HESTRevision)
	header.Length = uint32(HeaderLength + 4 + descriptors.Len())

	table := &bytes.Buffer{}
	if err := binary.Write(table, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if err := binary.Write(table, binary.LittleEndian, sourceCount); err != nil {
		return nil, err
	}
	table.Write(descriptors.Bytes())

	out := table.Bytes()
	out[9] = checksum(out) // checksum field offset within the header
	return out, nil
}

// BuildSDEI returns the serialized SDEI table: a bare ACPI header whose
// presence tells the OS that software delegated exceptions deliver the
// firmware-first error notifications.
func BuildSDEI(info TableInfo) ([]byte, error) {
	header := info.header(SDEISignature, SDEIRevision)
	header.Length = HeaderLength

	table := &bytes.Buffer{}
	if err := binary.Write(table, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	out := table.Bytes()
	out[9] = checksum(out)
	return out, nil
}

// Table is a decoded HEST table.
type Table struct {
	Header      Header
	SourceCount uint32
	Descriptors []*errsrc.Descriptor
}

// Parse decodes a serialized HEST table.
func Parse(b []byte) (*Table, error) {
	if len(b) < HeaderLength+4 {
		return nil, fmt.Errorf("table too small: got %d bytes, want at least %d",
			len(b), HeaderLength+4)
	}
	var t Table
	r := bytes.NewReader(b)
	if err := binary.Read(r, binary.LittleEndian, &t.Header); err != nil {
		return nil, err
	}
	if t.Header.Signature != HESTSignature {
		return nil, fmt.Errorf("invalid signature %q; want %q",
			t.Header.Signature, HESTSignature)
	}
	if int(t.Header.Length) != len(b) {
		return nil, fmt.Errorf("header declares %d bytes, table holds %d",
			t.Header.Length, len(b))
	}
	var sum uint8
	for _, c := range b {
		sum += c
	}
	if sum != 0 {
		return nil, fmt.Errorf("table bytes sum to %d; want 0", sum)
	}
	if err := binary.Read(r, binary.LittleEndian, &t.SourceCount); err != nil {
		return nil, err
	}

	offset := HeaderLength + 4
	for i := uint32(0); i < t.SourceCount; i++ {
		if len(b) < offset+errsrc.DescriptorLength {
			return nil, fmt.Errorf("descriptor %d truncated", i)
		}
		d, err := errsrc.ParseDescriptor(b[offset : offset+errsrc.DescriptorLength])
		if err != nil {
			return nil, fmt.Errorf("unable to parse descriptor %d: %w", i, err)
		}
		t.Descriptors = append(t.Descriptors, d)
		offset += errsrc.DescriptorLength
	}
	return &t, nil
}
