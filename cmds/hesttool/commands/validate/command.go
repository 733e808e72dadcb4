// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/openfirmware/hestkit/cmds/hesttool/commands"
	"github.com/openfirmware/hestkit/pkg/cper"
	"github.com/openfirmware/hestkit/pkg/errsrc"
	"github.com/openfirmware/hestkit/pkg/hest"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	HESTPath  string `short:"f" long:"hest" description:"path to a HEST table to validate"`
	BlockPath string `short:"b" long:"block" description:"path to an error status block to validate"`
	Region    bool   `short:"r" long:"region" description:"the block file is a full reserved region dump"`
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "validates a HEST table and/or an error status block"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return ""
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}
	if cmd.HESTPath == "" && cmd.BlockPath == "" {
		return commands.ErrArgs{Err: fmt.Errorf("either a HEST table or an error status block is required")}
	}

	if cmd.HESTPath != "" {
		if err := cmd.validateHEST(); err != nil {
			return err
		}
	}
	if cmd.BlockPath != "" {
		if err := cmd.validateBlock(); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *Command) validateHEST() error {
	data, err := os.ReadFile(cmd.HESTPath)
	if err != nil {
		return fmt.Errorf("unable to read the HEST table file '%s': %w", cmd.HESTPath, err)
	}
	parsed, err := hest.Parse(data)
	if err != nil {
		return fmt.Errorf("HEST table is invalid: %w", err)
	}

	var result *multierror.Error
	for i, d := range parsed.Descriptors {
		if d.Notification.Length != errsrc.NotificationLength {
			result = multierror.Append(result, fmt.Errorf(
				"descriptor %d: notification length is %d; want %d",
				i, d.Notification.Length, errsrc.NotificationLength))
		}
		if d.ErrorStatusAddress.Address == 0 || d.ReadAckRegister.Address == 0 {
			result = multierror.Append(result, fmt.Errorf(
				"descriptor %d: zero register address", i))
		}
		if d.ErrorStatusBlockLength < cper.GenericErrorStatusLength+cper.GenericErrorDataLength {
			result = multierror.Append(result, fmt.Errorf(
				"descriptor %d: status block length %d cannot hold a record",
				i, d.ErrorStatusBlockLength))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	fmt.Printf("HEST table OK: %d error source(s)\n", parsed.SourceCount)
	return nil
}

func (cmd *Command) validateBlock() error {
	data, err := os.ReadFile(cmd.BlockPath)
	if err != nil {
		return fmt.Errorf("unable to read the status block file '%s': %w", cmd.BlockPath, err)
	}
	if cmd.Region {
		if len(data) < errsrc.ErrorStatusDataOffset {
			return fmt.Errorf("region dump is %d bytes; want at least %d",
				len(data), errsrc.ErrorStatusDataOffset)
		}
		data = data[errsrc.ErrorStatusDataOffset:]
	}

	block, err := cper.ParseErrorBlock(data)
	if err != nil {
		return fmt.Errorf("error status block is invalid: %w", err)
	}
	if err := block.Validate(); err != nil {
		return err
	}

	fmt.Printf("error status block OK: %s, severity %s\n",
		block.SectionTypeName(), cper.WireSeverityName(block.Header.ErrorSeverity))
	return nil
}
