// Copyright 2026 the hestkit Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "platform.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
oem_id = "ACMEOE"

[cpu]
source_id = 4
sdei_event = 700
error_data_base = 0x80000000
error_data_size = 0x2000
`)
	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ACMEOE", config.OEMID)
	assert.Equal(t, uint16(4), config.CPU.SourceID)
	assert.Equal(t, uint32(700), config.CPU.SDEIEvent)
	assert.Equal(t, uint64(0x80000000), config.CPU.ErrorDataBase)

	// Sections absent from the file keep the built-in defaults.
	require.NotNil(t, config.SRAM)
	assert.Equal(t, Default().SRAM.SourceID, config.SRAM.SourceID)
}

func TestLoadRejectsUndersizedRegion(t *testing.T) {
	path := writeConfig(t, `
[cpu]
source_id = 0
sdei_event = 600
error_data_base = 0x80000000
error_data_size = 16
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least")
}

func TestValidateAggregates(t *testing.T) {
	config := Default()
	config.CPU.ErrorDataBase = 0
	config.CPU.ErrorDataSize = 0
	config.SRAM.SourceID = config.CPU.SourceID

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base address")
	assert.Contains(t, err.Error(), "need at least")
	assert.Contains(t, err.Error(), "share source id")
}

func TestValidateNoSources(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
