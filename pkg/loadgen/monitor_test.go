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
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"tcpblast/pkg/stats"
)

func TestMonitorRendersProgressLine(t *testing.T) {
	counters := stats.NewCounters()
	counters.Add(stats.Delta{Sent: 42, Received: 40, FailedSends: 2})

	var buf bytes.Buffer
	monitor := &ProgressMonitor{
		Counters: counters,
		Planned:  100,
		Interval: 20 * time.Millisecond,
		Out:      &buf,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	start := time.Now()
	go func() {
		defer close(done)
		monitor.Run(ctx, start)
	}()

	time.Sleep(80 * time.Millisecond)
	cancel()
	<-done

	out := buf.String()
	if !strings.Contains(out, "Sent=42/100") {
		t.Errorf("expected sent/planned in progress line, got: %q", out)
	}
	if !strings.Contains(out, "Received=40") {
		t.Errorf("expected received count, got: %q", out)
	}
	if !strings.Contains(out, "Failed=2") {
		t.Errorf("expected combined failure count, got: %q", out)
	}
	if !strings.Contains(out, "\r") {
		t.Errorf("progress line should rewrite in place, got: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("final render should end with a newline, got: %q", out)
	}
}

func TestMonitorWithoutPlan(t *testing.T) {
	counters := stats.NewCounters()
	counters.Add(stats.Delta{Sent: 7})

	var buf bytes.Buffer
	monitor := &ProgressMonitor{
		Counters: counters,
		Interval: 10 * time.Millisecond,
		Out:      &buf,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	monitor.Run(ctx, time.Now())

	out := buf.String()
	if !strings.Contains(out, "Sent=7 ") {
		t.Errorf("sustained mode should render without a target, got: %q", out)
	}
	if strings.Contains(out, "Sent=7/") {
		t.Errorf("no plan should be shown in sustained mode, got: %q", out)
	}
}
