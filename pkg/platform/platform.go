// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package platform holds the per-platform fixed configuration of the
// error sources: reserved memory placement, source ids and notification
// events. The values are normally build-time constants; the table
// generation tool can also read them from a TOML platform description.
package platform

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/openfirmware/hestkit/pkg/errsrc"
)

// Source describes one error source's fixed platform values.
type Source struct {
	SourceID      uint16 `toml:"source_id"`
	SDEIEvent     uint32 `toml:"sdei_event"`
	ErrorDataBase uint64 `toml:"error_data_base"`
	ErrorDataSize uint64 `toml:"error_data_size"`
}

// Config is the platform description consumed by the table generator.
type Config struct {
	OEMID           string `toml:"oem_id"`
	OEMTableID      string `toml:"oem_table_id"`
	OEMRevision     uint32 `toml:"oem_revision"`
	CreatorID       string `toml:"creator_id"`
	CreatorRevision uint32 `toml:"creator_revision"`

	CPU  *Source `toml:"cpu"`
	SRAM *Source `toml:"sram"`
}

// Default returns the built-in platform constants. They mirror the
// reference platform: one CPU error source and one base element RAM
// source, each with a 4 KiB reserved region.
func Default() *Config {
	return &Config{
		OEMID:           "HSTKIT",
		OEMTableID:      "HESTKIT",
		OEMRevision:     1,
		CreatorID:       "HKIT",
		CreatorRevision: 1,
		CPU: &Source{
			SourceID:      0,
			SDEIEvent:     600,
			ErrorDataBase: 0xFF610000,
			ErrorDataSize: 0x1000,
		},
		SRAM: &Source{
			SourceID:      1,
			SDEIEvent:     804,
			ErrorDataBase: 0xFF611000,
			ErrorDataSize: 0x1000,
		},
	}
}

// Load reads a platform description file. Fields absent from the file
// keep the built-in defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("unable to read platform description %q: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// regionSize returns the reserved memory a source needs: the register
// cells, the worst-case status block and the read ack data.
func regionSize(statusBlockLen uint32) uint64 {
	return errsrc.ErrorStatusDataOffset + uint64(statusBlockLen) + 8
}

func validateSource(name string, source *Source, statusBlockLen uint32) error {
	var result *multierror.Error
	if source.ErrorDataBase == 0 {
		result = multierror.Append(result, fmt.Errorf(
			"%s: error data base address must not be zero", name))
	}
	if need := regionSize(statusBlockLen); source.ErrorDataSize < need {
		result = multierror.Append(result, fmt.Errorf(
			"%s: reserved region holds %d bytes, need at least %d",
			name, source.ErrorDataSize, need))
	}
	return result.ErrorOrNil()
}

// Validate checks the platform description and aggregates every
// violation.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.CPU == nil && c.SRAM == nil {
		result = multierror.Append(result, fmt.Errorf(
			"platform describes no error sources"))
	}
	if c.CPU != nil {
		if err := validateSource("cpu", c.CPU, errsrc.CPUStatusBlockLength); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.SRAM != nil {
		if err := validateSource("sram", c.SRAM, errsrc.SRAMStatusBlockLength); err != nil {
			result = multierror.Append(result, err)
		}
		if c.CPU != nil && c.CPU.SourceID == c.SRAM.SourceID {
			result = multierror.Append(result, fmt.Errorf(
				"cpu and sram share source id %d", c.CPU.SourceID))
		}
	}

	return result.ErrorOrNil()
}
