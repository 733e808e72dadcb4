// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// cperinfo prints the contents of an encoded error status block, for
// example a dump of a firmware reserved error data region.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/openfirmware/hestkit/pkg/cper"
	"github.com/openfirmware/hestkit/pkg/errsrc"
	"github.com/openfirmware/hestkit/pkg/log"
)

var (
	flagJSON   = flag.BoolP("json", "j", false, "output as JSON")
	flagRegion = flag.BoolP("region", "r", false, "input is a full reserved region dump, not a bare status block")
)

// record is the fully decoded form of one error status block, with the
// section payload parsed by its type where supported.
type record struct {
	Block   *cper.ErrorBlock
	ARM     *cper.ProcessorSection `json:",omitempty"`
	Memory  *cper.MemorySection    `json:",omitempty"`
	Section string
}

func decode(b []byte) (*record, error) {
	block, err := cper.ParseErrorBlock(b)
	if err != nil {
		return nil, fmt.Errorf("cannot parse error status block: %v", err)
	}
	rec := &record{Block: block, Section: block.SectionTypeName()}
	switch block.Entry.SectionType {
	case *cper.SectionTypeARMProcessor:
		if rec.ARM, err = cper.ParseProcessorSection(block.Payload); err != nil {
			return nil, fmt.Errorf("cannot parse processor section: %v", err)
		}
	case *cper.SectionTypePlatformMemory:
		if rec.Memory, err = cper.ParseMemorySection(block.Payload); err != nil {
			return nil, fmt.Errorf("cannot parse memory section: %v", err)
		}
	}
	return rec, nil
}

func summary(rec *record) string {
	block := rec.Block
	s := fmt.Sprintf("Section Type        : %s\n", rec.Section)
	s += fmt.Sprintf("Block Status        : %#08x\n", block.Header.BlockStatus)
	s += fmt.Sprintf("Entry Count         : %d\n", block.Header.EntryCount())
	s += fmt.Sprintf("Severity            : %s\n", cper.WireSeverityName(block.Header.ErrorSeverity))
	s += fmt.Sprintf("Data Length         : %s\n", humanize.IBytes(uint64(block.Header.DataLength)))
	s += fmt.Sprintf("Descriptor Revision : %#x\n", block.Entry.Revision)
	s += fmt.Sprintf("Descriptor Flags    : %#02x\n", block.Entry.Flags)
	s += fmt.Sprintf("Payload Length      : %s\n", humanize.IBytes(uint64(len(block.Payload))))
	if rec.ARM != nil {
		s += fmt.Sprintf("MPIDR               : %#x\n", rec.ARM.Record.MPIDR)
		s += fmt.Sprintf("MIDR                : %#x\n", rec.ARM.Record.MIDR)
		s += fmt.Sprintf("Error Type          : %d\n", rec.ARM.Info.Type)
		s += fmt.Sprintf("Fault Address       : %#x\n", rec.ARM.Info.PhysicalFaultAddress)
		s += fmt.Sprintf("Context Blocks      : %d\n", len(rec.ARM.Contexts))
	}
	if rec.Memory != nil {
		s += fmt.Sprintf("Physical Address    : %#x\n", rec.Memory.PhysicalAddress)
		s += fmt.Sprintf("Address Mask        : %#x\n", rec.Memory.PhysicalAddressMask)
	}
	return s
}

func main() {
	flag.Parse()
	if flag.Arg(0) == "" {
		log.Fatalf("missing file name")
	}
	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("cannot read input file: %v", err)
	}
	if *flagRegion {
		if len(data) < errsrc.ErrorStatusDataOffset {
			log.Fatalf("region dump is %d bytes; want at least %d",
				len(data), errsrc.ErrorStatusDataOffset)
		}
		data = data[errsrc.ErrorStatusDataOffset:]
	}

	rec, err := decode(data)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *flagJSON {
		j, err := json.MarshalIndent(rec, "", "    ")
		if err != nil {
			log.Fatalf("cannot marshal JSON: %v", err)
		}
		fmt.Println(string(j))
	} else {
		fmt.Print(summary(rec))
	}
}
