// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// hesttool generates and inspects the Hardware Error Source Table and
// the reserved error data regions of the platform error sources.
//
// Synopsis:
//     hesttool gen [-p PLATFORM_TOML] [--hest FILE] [--sdei FILE] [--regions DIR]
//     hesttool show -f HEST_FILE [--format=json]
//     hesttool validate [-f HEST_FILE] [-b BLOCK_FILE [-r]]
//
// An example:
//     hesttool gen -p juno.toml --regions out/
//     hesttool show -f hest.acpi
//     hesttool validate -f hest.acpi -b out/cpu-region.bin -r
//
// Description:
//     gen:      Build the HEST and SDEI tables from a platform description
//     show:     Print the error source descriptors of a HEST table
//     validate: Check a HEST table and/or an encoded error status block
package main

import (
	"log"

	"github.com/jessevdk/go-flags"

	"github.com/openfirmware/hestkit/cmds/hesttool/commands"
	"github.com/openfirmware/hestkit/cmds/hesttool/commands/gen"
	"github.com/openfirmware/hestkit/cmds/hesttool/commands/show"
	"github.com/openfirmware/hestkit/cmds/hesttool/commands/validate"
)

var (
	knownCommands = map[string]commands.Command{
		"gen":      &gen.Command{},
		"show":     &show.Command{},
		"validate": &validate.Command{},
	}
)

func main() {
	flagsParser := flags.NewParser(nil, flags.Default)
	for commandName, command := range knownCommands {
		_, err := flagsParser.AddCommand(commandName, command.ShortDescription(), command.LongDescription(), command)
		if err != nil {
			panic(err)
		}
	}

	// parse arguments and execute the appropriate command
	if _, err := flagsParser.Parse(); err != nil {
		log.Fatal(err)
	}
}
