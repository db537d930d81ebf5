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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "TAGANROG_CFG"
)

// Values is the on-disk, TOML-serialized configuration shape. Workdir is
// the only setting with no usable default.
type Values struct {
	Workdir      string  `toml:"workdir"`
	Service      Service `toml:"service,omitempty"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

// Service holds the HTTP boundary's own settings.
type Service struct {
	APIToken       string   `toml:"api_token,omitempty"`
	AllowedOrigins []string `toml:"allowed_origins,omitempty"`
	APIPort        int      `toml:"api_port"`
}

// BaseDefaults is the configuration NewConfig callers start from; NewConfig
// writes the defaults it is given to disk when no config file exists yet.
// Load does not merge defaults in: a field that an existing config file
// omits is left at its zero value.
var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Service: Service{
		APIPort:        8080,
		AllowedOrigins: []string{"*"},
	},
}

// Instance is a mutex-guarded, load/save-able configuration handle.
type Instance struct {
	cfgPath string
	vals    Values
	mu      sync.RWMutex
}

var apiToken atomic.Value

// NewConfig loads configDir/config.toml (or $TAGANROG_CFG if set), writing
// defaults to disk first if no config file exists yet.
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{cfgPath: cfgPath, vals: defaults}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Str("path", cfgPath).Msg("saving new default config to disk")

		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load re-reads and replaces the in-memory values from disk.
func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	if _, err := os.Stat(c.cfgPath); err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var newVals Values
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf("schema version mismatch: got %d, expecting %d", newVals.ConfigSchema, SchemaVersion)
		return errors.New("schema version mismatch")
	}
	if newVals.Workdir == "" {
		return errors.New("workdir must be set")
	}

	c.vals = newVals
	apiToken.Store(newVals.Service.APIToken)
	return nil
}

// Save writes the current in-memory values to disk, stamping the schema
// version.
func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}
	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Workdir is the filesystem root containing the log, uploads and
// thumbnails; the only required setting.
func (c *Instance) Workdir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Workdir
}

func (c *Instance) APIPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Service.APIPort
}

func (c *Instance) AllowedOrigins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.vals.Service.AllowedOrigins...)
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// AuthEnabled reports whether an API token has been configured; when it
// has, unauthenticated requests to the HTTP boundary get 401.
func AuthEnabled() bool {
	tok, _ := apiToken.Load().(string)
	return tok != ""
}

// CheckToken reports whether presented matches the configured API token.
func CheckToken(presented string) bool {
	tok, _ := apiToken.Load().(string)
	return tok != "" && presented == tok
}

// SetAPITokenForTesting overrides the process-wide token check, for the
// HTTP boundary's own tests.
func SetAPITokenForTesting(token string) {
	apiToken.Store(token)
}
