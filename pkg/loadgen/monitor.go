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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"tcpblast/pkg/metrics"
	"tcpblast/pkg/stats"
)

// defaultMonitorInterval is how often the progress line refreshes.
const defaultMonitorInterval = 500 * time.Millisecond

// ProgressMonitor periodically samples the shared counters and renders a
// single in-place progress line. It only ever reads snapshots, so it cannot
// slow the workers down, and it never holds the counters' lock while
// formatting.
type ProgressMonitor struct {
	Counters *stats.Counters

	// Planned is the burst-mode message target shown as Sent=<n>/<planned>.
	// 0 (sustained mode) renders without a target.
	Planned int64

	// Interval defaults to 500ms when zero.
	Interval time.Duration

	// Out defaults to os.Stdout.
	Out io.Writer

	// Exporter, when non-nil, receives the computed throughput each tick.
	Exporter *metrics.Exporter
}

// Run renders until ctx is cancelled, then emits one final line and a
// newline so the report starts cleanly. Always returns nil; it exists to be
// scheduled under the run controller's errgroup.
func (m *ProgressMonitor) Run(ctx context.Context, start time.Time) error {
	interval := m.Interval
	if interval <= 0 {
		interval = defaultMonitorInterval
	}

	meter := gometrics.NewMeter()
	defer meter.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSent int64
	for {
		select {
		case <-ctx.Done():
			m.render(start, meter, &lastSent)
			fmt.Fprintln(m.out())
			return nil
		case <-ticker.C:
			m.render(start, meter, &lastSent)
		}
	}
}

func (m *ProgressMonitor) render(start time.Time, meter gometrics.Meter, lastSent *int64) {
	snap := m.Counters.Snapshot()
	meter.Mark(snap.Sent - *lastSent)
	*lastSent = snap.Sent

	elapsed := time.Since(start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(snap.Sent) / elapsed
	}
	if m.Exporter != nil {
		m.Exporter.SetThroughput(rate)
	}

	sent := fmt.Sprintf("%d", snap.Sent)
	if m.Planned > 0 {
		sent = fmt.Sprintf("%d/%d", snap.Sent, m.Planned)
	}

	fmt.Fprintf(m.out(), "\rProgress: Sent=%s | Received=%d | Failed=%d | Time=%.1fs | Rate=%.1f msg/s (1m avg %.1f)",
		sent, snap.Received, snap.Failed(), elapsed, rate, meter.Rate1())
}

func (m *ProgressMonitor) out() io.Writer {
	if m.Out != nil {
		return m.Out
	}
	return os.Stdout
}
