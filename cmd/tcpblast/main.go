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

// tcpblast drives concurrent load against a TCP message server. Invoked
// without a subcommand it presents the interactive test menu; the burst and
// sustained subcommands run non-interactively for scripting.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tcpblast/pkg/config"
	"tcpblast/pkg/loadgen"
	"tcpblast/utils/logging"
)

var (
	flagConfig      string
	flagHost        string
	flagPort        int
	flagTotal       int
	flagClients     int
	flagDuration    time.Duration
	flagBandwidth   int
	flagMetricsAddr string
	flagLogLevel    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tcpblast",
		Short: "Concurrent load generator for TCP message servers",
		Long: "tcpblast opens many simultaneous TCP connections, streams framed test\n" +
			"messages over each, and reports aggregate throughput. Without a\n" +
			"subcommand it presents the interactive test menu.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitLogger("tcpblast", logging.Config{
				Level: logging.ParseLevel(flagLogLevel),
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to a YAML run profile")
	pf.StringVar(&flagHost, "host", config.DefaultHost, "Server host")
	pf.IntVar(&flagPort, "port", config.DefaultPort, "Server port")
	pf.IntVar(&flagClients, "clients", config.DefaultClients, "Number of concurrent clients")
	pf.IntVar(&flagBandwidth, "bw-limit", 0, "Per-connection bandwidth cap in bytes/sec (0 = unlimited)")
	pf.StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :2112)")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	burstCmd := &cobra.Command{
		Use:   "burst",
		Short: "Send a fixed total message count split across the clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Mode = config.ModeBurst
			if cmd.Flags().Changed("total") {
				cfg.TotalMessages = flagTotal
			}
			return executeRun(cfg)
		},
	}
	burstCmd.Flags().IntVar(&flagTotal, "total", config.DefaultTotal, "Total messages across all clients")

	sustainedCmd := &cobra.Command{
		Use:   "sustained",
		Short: "Send at a paced rate until the duration elapses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Mode = config.ModeSustained
			if cmd.Flags().Changed("duration") {
				cfg.Duration = flagDuration
			}
			return executeRun(cfg)
		},
	}
	sustainedCmd.Flags().DurationVar(&flagDuration, "duration", config.DefaultDuration, "How long to sustain the load")

	rootCmd.AddCommand(burstCmd, sustainedCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig builds the run configuration with the precedence
// flags > environment > profile file > defaults.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	if flagConfig != "" {
		loaded, err := config.LoadFile(flagConfig)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	cfg.ApplyEnv()

	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host = flagHost
	}
	if f.Changed("port") {
		cfg.Port = flagPort
	}
	if f.Changed("clients") {
		cfg.Clients = flagClients
	}
	if f.Changed("bw-limit") {
		cfg.BandwidthLimit = flagBandwidth
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = flagMetricsAddr
	}

	return cfg, nil
}

// executeRun prints the configuration banner, runs the test and renders the
// report.
func executeRun(cfg config.Config) error {
	rule := strings.Repeat("=", 70)

	fmt.Println(rule)
	if cfg.Mode == config.ModeBurst {
		fmt.Println("Load Test Configuration:")
		fmt.Printf("  Server: %s\n", cfg.Addr())
		fmt.Printf("  Total Messages: %d\n", cfg.TotalMessages)
		fmt.Printf("  Concurrent Clients: %d\n", cfg.Clients)
		fmt.Printf("  Messages per Client: %d\n", cfg.PerClient())
	} else {
		fmt.Println("Sustained Load Test Configuration:")
		fmt.Printf("  Server: %s\n", cfg.Addr())
		fmt.Printf("  Duration: %s\n", cfg.Duration)
		fmt.Printf("  Concurrent Clients: %d\n", cfg.Clients)
	}
	fmt.Println(rule)
	fmt.Println()

	runner := loadgen.New(cfg, nil)
	report, err := runner.Run(context.Background())
	if err != nil {
		return err
	}

	report.Render(os.Stdout)
	return nil
}
