// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/openfirmware/hestkit/cmds/hesttool/commands"
	"github.com/openfirmware/hestkit/pkg/errsrc"
	"github.com/openfirmware/hestkit/pkg/hest"
	"github.com/openfirmware/hestkit/pkg/platform"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	PlatformPath string `short:"p" long:"platform" description:"path to a TOML platform description (built-in defaults when omitted)"`
	HESTPath     string `long:"hest" default:"hest.acpi" description:"output path of the HEST table"`
	SDEIPath     string `long:"sdei" default:"sdei.acpi" description:"output path of the SDEI table"`
	RegionDir    string `long:"regions" description:"also write the initialized reserved region images into this directory"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "generates the HEST and SDEI tables from a platform description"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return ""
}

// namedSource pairs an error source with its reserved region image, so
// the image can be written out after the table build initialized it.
type namedSource struct {
	source errsrc.Source
	image  []byte
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}

	config := platform.Default()
	if cmd.PlatformPath != "" {
		var err error
		if config, err = platform.Load(cmd.PlatformPath); err != nil {
			return err
		}
	}

	sources, err := makeSources(config)
	if err != nil {
		return err
	}

	info := hest.TableInfo{
		OEMID:           config.OEMID,
		OEMTableID:      config.OEMTableID,
		OEMRevision:     config.OEMRevision,
		CreatorID:       config.CreatorID,
		CreatorRevision: config.CreatorRevision,
	}
	builder := hest.NewBuilder(info)
	for _, s := range sources {
		builder.AddSource(s.source)
	}

	hestTable, err := builder.Build()
	if err != nil {
		return err
	}
	sdeiTable, err := hest.BuildSDEI(info)
	if err != nil {
		return err
	}

	if err := os.WriteFile(cmd.HESTPath, hestTable, 0o644); err != nil {
		return fmt.Errorf("unable to write the HEST table: %w", err)
	}
	if err := os.WriteFile(cmd.SDEIPath, sdeiTable, 0o644); err != nil {
		return fmt.Errorf("unable to write the SDEI table: %w", err)
	}
	fmt.Printf("wrote %s (%d bytes) and %s (%d bytes)\n",
		cmd.HESTPath, len(hestTable), cmd.SDEIPath, len(sdeiTable))

	if cmd.RegionDir == "" {
		return nil
	}
	for _, s := range sources {
		path := filepath.Join(cmd.RegionDir, s.source.Name()+"-region.bin")
		if err := os.WriteFile(path, s.image, 0o644); err != nil {
			return fmt.Errorf("unable to write the region image: %w", err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", path, len(s.image))
	}
	return nil
}

// makeSources builds the error sources the platform describes, each over
// an in-memory image of its reserved region. The generated table embeds
// the configured physical addresses; the images are only needed when the
// caller wants to flash pre-initialized regions.
func makeSources(config *platform.Config) ([]namedSource, error) {
	var sources []namedSource

	if config.CPU != nil {
		image := make([]byte, config.CPU.ErrorDataSize)
		region, err := errsrc.NewRegion(config.CPU.ErrorDataBase, image, errsrc.CPUStatusBlockLength)
		if err != nil {
			return nil, fmt.Errorf("cpu: %w", err)
		}
		source := errsrc.NewCPUSource(errsrc.Config{
			SourceID:  config.CPU.SourceID,
			SDEIEvent: config.CPU.SDEIEvent,
		}, region)
		sources = append(sources, namedSource{source: source, image: image})
	}
	if config.SRAM != nil {
		image := make([]byte, config.SRAM.ErrorDataSize)
		region, err := errsrc.NewRegion(config.SRAM.ErrorDataBase, image, errsrc.SRAMStatusBlockLength)
		if err != nil {
			return nil, fmt.Errorf("sram: %w", err)
		}
		source := errsrc.NewSRAMSource(errsrc.Config{
			SourceID:  config.SRAM.SourceID,
			SDEIEvent: config.SRAM.SDEIEvent,
		}, region)
		sources = append(sources, namedSource{source: source, image: image})
	}
	return sources, nil
}
