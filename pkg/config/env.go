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
	"strconv"
	"strings"
	"time"
)

// envOverride binds one environment variable to a config setting.
type envOverride struct {
	key   string
	apply func(cfg *Config, raw string) error
}

var envOverrides = []envOverride{
	{"API_URL", setString(func(c *Config) *string { return &c.API.URL })},
	{"AUTH_TOKEN", setString(func(c *Config) *string { return &c.API.AuthToken })},
	{"INSECURE_TLS", setParsed(func(c *Config) *bool { return &c.API.InsecureTLS }, parseBool)},
	{"API_TIMEOUT", setParsed(func(c *Config) *time.Duration { return &c.API.Timeout }, time.ParseDuration)},
	{"PLANT_ID", setParsed(func(c *Config) *int { return &c.Plant.PlantID }, strconv.Atoi)},
	{"CLIENT_ID", setParsed(func(c *Config) *int { return &c.Plant.ClientID }, strconv.Atoi)},
	{"SHIFT_MODE", setString(func(c *Config) *string { return &c.Engine.ShiftMode })},
	{"SENTRY_DSN", setString(func(c *Config) *string { return &c.Sentry.DSN })},
	{"METRICS_ADDR", setString(func(c *Config) *string { return &c.Metrics.Addr })},
}

// EnvKeys lists every variable ApplyEnvOverrides reads.
func EnvKeys() []string {
	keys := make([]string, 0, len(envOverrides))
	for _, o := range envOverrides {
		keys = append(keys, o.key)
	}

	return keys
}

// ApplyEnvOverrides overwrites the settings whose variable is set and not
// blank. Malformed values are collected and returned together.
func ApplyEnvOverrides(cfg *Config) error {
	var errs []error
	for _, o := range envOverrides {
		raw, ok := os.LookupEnv(o.key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := o.apply(cfg, strings.TrimSpace(raw)); err != nil {
			errs = append(errs, fmt.Errorf("environment variable %s: %w", o.key, err))
		}
	}

	return errors.Join(errs...)
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, raw string) error {
		*field(c) = raw

		return nil
	}
}

func setParsed[T any](field func(*Config) *T, parse func(string) (T, error)) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := parse(raw)
		if err != nil {
			return err
		}
		*field(c) = v

		return nil
	}
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "y", "on":
		return true, nil
	case "false", "0", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%q is not a boolean", raw)
	}
}
