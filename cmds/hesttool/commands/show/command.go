// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package show

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/openfirmware/hestkit/cmds/hesttool/commands"
	"github.com/openfirmware/hestkit/pkg/hest"
)

var _ commands.Command = (*Command)(nil)

type Command struct {
	HESTPath string  `short:"f" long:"hest" description:"path to the HEST table" required:"true"`
	Format   *string `long:"format" description:"output format [text, json]"`
}

type Format int

const (
	FormatUndefined = Format(iota)
	FormatText
	FormatJSON
)

func ParseFormat(s string) Format {
	switch strings.Trim(strings.ToLower(s), " ") {
	case "text":
		return FormatText
	case "json":
		return FormatJSON
	}
	return FormatUndefined
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "prints the error source descriptors of a HEST table"
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

	format := FormatText
	if cmd.Format != nil {
		format = ParseFormat(*cmd.Format)
		if format == FormatUndefined {
			return commands.ErrArgs{Err: fmt.Errorf("unknown format '%s'", *cmd.Format)}
		}
	}

	data, err := os.ReadFile(cmd.HESTPath)
	if err != nil {
		return fmt.Errorf("unable to read the HEST table file '%s': %w", cmd.HESTPath, err)
	}
	parsed, err := hest.Parse(data)
	if err != nil {
		return fmt.Errorf("unable to parse the HEST table: %w", err)
	}

	switch format {
	case FormatText:
		printTable(parsed)
	case FormatJSON:
		b, err := json.Marshal(parsed)
		if err != nil {
			panic(err)
		}
		fmt.Printf("%s\n", b)
	}

	return nil
}

func printTable(parsed *hest.Table) {
	h := table.NewWriter()
	h.SetOutputMirror(os.Stdout)
	h.SetTitle("HEST Header")
	h.AppendHeader(table.Row{"OEM ID", "OEM Table ID", "Revision", "Length", "Sources"})
	h.AppendRow([]interface{}{
		strings.TrimRight(string(parsed.Header.OEMID[:]), "\x00"),
		strings.TrimRight(string(parsed.Header.OEMTableID[:]), "\x00"),
		parsed.Header.Revision,
		parsed.Header.Length,
		parsed.SourceCount,
	})
	h.Render()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Error Source Descriptors")
	t.AppendHeader(table.Row{
		"Source ID",
		"Type",
		"Enabled",
		"Event",
		"Status Block",
		"Status Register",
		"Read Ack Register",
	})
	for _, d := range parsed.Descriptors {
		t.AppendRow([]interface{}{
			d.SourceID,
			d.Type,
			d.Enabled,
			d.Notification.Vector,
			humanize.IBytes(uint64(d.ErrorStatusBlockLength)),
			fmt.Sprintf("%#x", d.ErrorStatusAddress.Address),
			fmt.Sprintf("%#x", d.ReadAckRegister.Address),
		})
	}
	t.Render()
}
