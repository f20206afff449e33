/*
SPDX-FileCopyrightText: Copyright (c) 2026 tcpblast authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

// Package config holds the run configuration for a load test. Values are
// resolved with the precedence: command-line flags > TCPBLAST_* environment
// variables > YAML profile > defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects how a run terminates.
type Mode string

const (
	// ModeBurst sends a fixed total message count split across clients.
	ModeBurst Mode = "burst"
	// ModeSustained sends at a paced rate until a wall-clock deadline.
	ModeSustained Mode = "sustained"
)

// Defaults mirroring the classic 10k-over-100-clients test.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 9090
	DefaultTotal    = 10000
	DefaultClients  = 100
	DefaultDuration = 60 * time.Second
)

// Config describes one load-test run.
type Config struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Mode          Mode          `yaml:"mode"`
	TotalMessages int           `yaml:"total_messages"`
	Duration      time.Duration `yaml:"duration"`
	Clients       int           `yaml:"clients"`

	// BandwidthLimit caps each connection's read and write rate in bytes
	// per second. 0 means unlimited.
	BandwidthLimit int `yaml:"bandwidth_limit"`

	// MetricsAddr, when non-empty, serves a Prometheus /metrics endpoint
	// for the duration of the run (e.g. ":2112").
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration for the default burst test.
func Default() Config {
	return Config{
		Host:          DefaultHost,
		Port:          DefaultPort,
		Mode:          ModeBurst,
		TotalMessages: DefaultTotal,
		Duration:      DefaultDuration,
		Clients:       DefaultClients,
	}
}

// UnmarshalYAML overlays only the keys present in the document, so a partial
// profile keeps the defaults for everything it does not mention. Durations
// are written as Go duration strings ("90s", "2m").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Host           *string `yaml:"host"`
		Port           *int    `yaml:"port"`
		Mode           *Mode   `yaml:"mode"`
		TotalMessages  *int    `yaml:"total_messages"`
		Duration       *string `yaml:"duration"`
		Clients        *int    `yaml:"clients"`
		BandwidthLimit *int    `yaml:"bandwidth_limit"`
		MetricsAddr    *string `yaml:"metrics_addr"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.Host != nil {
		c.Host = *raw.Host
	}
	if raw.Port != nil {
		c.Port = *raw.Port
	}
	if raw.Mode != nil {
		c.Mode = *raw.Mode
	}
	if raw.TotalMessages != nil {
		c.TotalMessages = *raw.TotalMessages
	}
	if raw.Duration != nil {
		d, err := time.ParseDuration(*raw.Duration)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", *raw.Duration, err)
		}
		c.Duration = d
	}
	if raw.Clients != nil {
		c.Clients = *raw.Clients
	}
	if raw.BandwidthLimit != nil {
		c.BandwidthLimit = *raw.BandwidthLimit
	}
	if raw.MetricsAddr != nil {
		c.MetricsAddr = *raw.MetricsAddr
	}

	return nil
}

// LoadFile reads a YAML profile and overlays it on the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overlays TCPBLAST_* environment variables on the configuration.
func (c *Config) ApplyEnv() {
	c.Host = GetEnv("TCPBLAST_HOST", c.Host)
	c.Port = GetEnvInt("TCPBLAST_PORT", c.Port)
	c.TotalMessages = GetEnvInt("TCPBLAST_TOTAL_MESSAGES", c.TotalMessages)
	c.Clients = GetEnvInt("TCPBLAST_CLIENTS", c.Clients)
	c.BandwidthLimit = GetEnvInt("TCPBLAST_BANDWIDTH_LIMIT", c.BandwidthLimit)
	c.MetricsAddr = GetEnv("TCPBLAST_METRICS_ADDR", c.MetricsAddr)
}

// Addr returns the host:port dial target.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PerClient returns the burst-mode message count per client. Integer
// division truncates; the remainder is dropped from the plan (see
// PlannedTotal).
func (c Config) PerClient() int {
	if c.Clients <= 0 {
		return 0
	}
	return c.TotalMessages / c.Clients
}

// PlannedTotal returns the message count the run will actually attempt in
// burst mode: PerClient()*Clients. It is lower than TotalMessages when the
// division truncates, which the report calls out explicitly.
func (c Config) PlannedTotal() int {
	return c.PerClient() * c.Clients
}

// Validate checks the configuration values for the selected mode.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Clients <= 0 {
		return fmt.Errorf("clients must be greater than 0")
	}
	if c.BandwidthLimit < 0 {
		return fmt.Errorf("bandwidth_limit cannot be negative")
	}

	switch c.Mode {
	case ModeBurst:
		if c.TotalMessages <= 0 {
			return fmt.Errorf("total_messages must be greater than 0")
		}
		if c.TotalMessages < c.Clients {
			return fmt.Errorf("total_messages (%d) must be at least the client count (%d)",
				c.TotalMessages, c.Clients)
		}
	case ModeSustained:
		if c.Duration <= 0 {
			return fmt.Errorf("duration must be greater than 0")
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	return nil
}
