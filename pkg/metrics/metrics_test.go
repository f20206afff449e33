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

package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"tcpblast/pkg/stats"
)

func TestExporterObserve(t *testing.T) {
	e := NewExporter()

	e.Observe(stats.Delta{Sent: 10, Received: 8})
	e.Observe(stats.Delta{FailedConns: 1, FailedSends: 2})

	if got := testutil.ToFloat64(e.sentTotal); got != 10 {
		t.Errorf("sent counter = %v, want 10", got)
	}
	if got := testutil.ToFloat64(e.acksTotal); got != 8 {
		t.Errorf("ack counter = %v, want 8", got)
	}
	if got := testutil.ToFloat64(e.failedConnsTotal); got != 1 {
		t.Errorf("failed conns counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.failedSendsTotal); got != 2 {
		t.Errorf("failed sends counter = %v, want 2", got)
	}
}

func TestExporterGauges(t *testing.T) {
	e := NewExporter()

	e.WorkerStarted()
	e.WorkerStarted()
	e.WorkerFinished()
	e.SetThroughput(123.5)

	if got := testutil.ToFloat64(e.activeClients); got != 1 {
		t.Errorf("active clients = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.throughputSent); got != 123.5 {
		t.Errorf("throughput = %v, want 123.5", got)
	}
}

func TestExporterServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	e := NewExporter()
	e.Observe(stats.Delta{Sent: 5})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Serve(ctx, addr)
	}()

	// Poll until the endpoint answers.
	var body string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err == nil {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			body = string(data)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if !strings.Contains(body, "tcpblast_messages_sent_total 5") {
		t.Errorf("metrics endpoint missing sent counter:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v on shutdown", err)
		}
	case <-time.After(3 * time.Second):
		t.Error("Serve did not shut down after cancellation")
	}
}
