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

package loadgen

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"tcpblast/pkg/config"
)

// Report is the final outcome of one run, assembled from the last counter
// snapshot after every worker has published its result.
type Report struct {
	RunID    uuid.UUID
	Mode     config.Mode
	Duration time.Duration

	// PlannedTotal is the burst-mode send target (PerClient*Clients);
	// 0 in sustained mode. DroppedFromPlan is the remainder lost to
	// integer division of the configured total.
	PlannedTotal    int64
	DroppedFromPlan int64

	Sent        int64
	Received    int64
	FailedConns int64
	FailedSends int64
}

// Rate returns the average send rate in messages per second.
func (r *Report) Rate() float64 {
	secs := r.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Sent) / secs
}

// SuccessRate returns sent over planned as a percentage. Only meaningful in
// burst mode; returns 0 when there is no plan.
func (r *Report) SuccessRate() float64 {
	if r.PlannedTotal <= 0 {
		return 0
	}
	return float64(r.Sent) / float64(r.PlannedTotal) * 100
}

// Render writes the human-readable summary.
func (r *Report) Render(w io.Writer) {
	bold := color.New(color.Bold)
	rule := strings.Repeat("=", 70)

	fmt.Fprintln(w, rule)
	bold.Fprintln(w, "Load Test Results:")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(w, "Total Duration: %.2f seconds\n", r.Duration.Seconds())

	if r.Mode == config.ModeBurst {
		fmt.Fprintf(w, "Messages Sent: %d/%d\n", r.Sent, r.PlannedTotal)
		if r.DroppedFromPlan > 0 {
			fmt.Fprintf(w, "  (%d messages dropped from the plan by per-client rounding)\n",
				r.DroppedFromPlan)
		}
	} else {
		fmt.Fprintf(w, "Messages Sent: %d\n", r.Sent)
	}

	fmt.Fprintf(w, "Acknowledgments Received: %d\n", r.Received)
	failures := color.New(color.FgGreen)
	if r.FailedConns > 0 || r.FailedSends > 0 {
		failures = color.New(color.FgRed)
	}
	failures.Fprintf(w, "Failed Connections: %d\n", r.FailedConns)
	failures.Fprintf(w, "Failed Sends: %d\n", r.FailedSends)
	fmt.Fprintf(w, "Average Rate: %.2f messages/second\n", r.Rate())

	if r.Mode == config.ModeBurst {
		fmt.Fprintf(w, "Success Rate: %.2f%%\n", r.SuccessRate())
	}
	fmt.Fprintln(w, rule)
}
