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

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tcpblast/pkg/config"
)

// runInteractive presents the classic three-option menu. Any unrecognized
// choice falls back to the default burst test.
func runInteractive(cmd *cobra.Command) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Server Load Testing Tool")
	fmt.Println(strings.Repeat("-", 70))
	fmt.Println("Options:")
	fmt.Printf("  1. Send %d messages (burst test)\n", cfg.TotalMessages)
	fmt.Printf("  2. Sustained load test (%s)\n", cfg.Duration)
	fmt.Println("  3. Custom configuration")

	reader := bufio.NewReader(os.Stdin)
	choice := prompt(reader, "\nSelect option (1-3): ")

	switch choice {
	case "1":
		cfg.Mode = config.ModeBurst
	case "2":
		cfg.Mode = config.ModeSustained
	case "3":
		cfg.Mode = config.ModeBurst
		total, err := strconv.Atoi(prompt(reader, "Total messages: "))
		if err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
		clients, err := strconv.Atoi(prompt(reader, "Number of concurrent clients: "))
		if err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
		cfg.TotalMessages = total
		cfg.Clients = clients
	default:
		fmt.Println("Running default burst test...")
		cfg.Mode = config.ModeBurst
	}

	return executeRun(cfg)
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
