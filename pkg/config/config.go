// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultShiftMode is the shift listing mode requested from the backend.
	DefaultShiftMode = "current"
	// DefaultScrollRetries bounds scroll restoration attempts after a picker return.
	DefaultScrollRetries = 5
	// DefaultScrollBackoff is the fixed delay between scroll restoration attempts.
	DefaultScrollBackoff = 120 * time.Millisecond
	// DefaultTemplateCacheTTL keeps template details for a working session.
	DefaultTemplateCacheTTL = 8 * time.Hour
	// DefaultRequestTimeout is the per-request transport timeout.
	DefaultRequestTimeout = 30 * time.Second
)

// Config is the full client configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Plant   PlantConfig   `yaml:"plant"`
	Engine  EngineConfig  `yaml:"engine"`
	Sentry  SentryConfig  `yaml:"sentry"`
	Metrics MetricsConfig `yaml:"metrics"`
	Version string        `yaml:"version,omitempty"`
}

// APIConfig describes how to reach the backend.
type APIConfig struct {
	URL         string        `yaml:"url"`
	AuthToken   string        `yaml:"authToken"`
	InsecureTLS bool          `yaml:"insecureTLS"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PlantConfig scopes machine and label lookups.
type PlantConfig struct {
	PlantID  int `yaml:"plantId"`
	ClientID int `yaml:"clientId"`
}

// EngineConfig tunes the action form engine.
type EngineConfig struct {
	ShiftMode        string        `yaml:"shiftMode"`
	ScrollRetries    int           `yaml:"scrollRetries"`
	ScrollBackoff    time.Duration `yaml:"scrollBackoff"`
	TemplateCacheTTL time.Duration `yaml:"templateCacheTTL"`
}

type SentryConfig struct {
	DSN string `yaml:"dsn"`
}

type MetricsConfig struct {
	// Addr is the listen address of the Prometheus endpoint; empty disables it.
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every tunable set.
func Default() Config {
	return Config{
		API: APIConfig{
			Timeout: DefaultRequestTimeout,
		},
		Engine: EngineConfig{
			ShiftMode:        DefaultShiftMode,
			ScrollRetries:    DefaultScrollRetries,
			ScrollBackoff:    DefaultScrollBackoff,
			TemplateCacheTTL: DefaultTemplateCacheTTL,
		},
	}
}

// Load reads the YAML file at path (if path is non-empty), fills unset values
// with defaults and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	cfg.fillDefaults()

	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.API.Timeout <= 0 {
		c.API.Timeout = d.API.Timeout
	}
	if c.Engine.ShiftMode == "" {
		c.Engine.ShiftMode = d.Engine.ShiftMode
	}
	if c.Engine.ScrollRetries <= 0 {
		c.Engine.ScrollRetries = d.Engine.ScrollRetries
	}
	if c.Engine.ScrollBackoff <= 0 {
		c.Engine.ScrollBackoff = d.Engine.ScrollBackoff
	}
	if c.Engine.TemplateCacheTTL <= 0 {
		c.Engine.TemplateCacheTTL = d.Engine.TemplateCacheTTL
	}
	c.API.URL = strings.TrimRight(c.API.URL, "/")
}

// Validate reports the settings a backend connection cannot work without.
func (c Config) Validate() error {
	var errs []error
	if c.API.URL == "" {
		errs = append(errs, errors.New("api.url (API_URL) is required"))
	}
	if c.API.AuthToken == "" {
		errs = append(errs, errors.New("api.authToken (AUTH_TOKEN) is required"))
	}
	if c.Plant.PlantID <= 0 {
		errs = append(errs, errors.New("plant.plantId (PLANT_ID) must be positive"))
	}

	return errors.Join(errs...)
}
