// Taganrog Catalog
// Copyright (c) 2026 The Taganrog Catalog Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Taganrog Catalog.
//
// Taganrog Catalog is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Taganrog Catalog is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Taganrog Catalog.  If not, see <http://www.gnu.org/licenses/>.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taganrog-go/catalog/pkg/config"
)

func TestNewConfig_WritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	defaults := config.BaseDefaults
	defaults.Workdir = filepath.Join(dir, "workdir")

	cfg, err := config.NewConfig(dir, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults.Workdir, cfg.Workdir())
	assert.Equal(t, 8080, cfg.APIPort())

	assert.FileExists(t, filepath.Join(dir, config.CfgFile))
}

func TestLoad_RejectsMissingWorkdir(t *testing.T) {
	dir := t.TempDir()
	defaults := config.BaseDefaults // no Workdir set

	_, err := config.NewConfig(dir, defaults)
	assert.Error(t, err)
}

func TestLoad_RejectsSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.CfgFile)
	require.NoError(t, os.WriteFile(path, []byte("workdir = \"/tmp/x\"\nconfig_schema = 99\n"), 0o600))

	defaults := config.BaseDefaults
	defaults.Workdir = "/tmp/x"
	// NewConfig only writes defaults when the file is absent; since it
	// already exists with a bad schema, Load should surface the mismatch.
	_, err := config.NewConfig(dir, defaults)
	assert.Error(t, err)
}

func TestTokenAuth(t *testing.T) {
	config.SetAPITokenForTesting("")
	assert.False(t, config.AuthEnabled())
	assert.False(t, config.CheckToken("anything"))

	config.SetAPITokenForTesting("s3cr3t")
	assert.True(t, config.AuthEnabled())
	assert.True(t, config.CheckToken("s3cr3t"))
	assert.False(t, config.CheckToken("wrong"))
	config.SetAPITokenForTesting("")
}
