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
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"tcpblast/pkg/stats"
)

// startServer runs a TCP server on a loopback port and hands every accepted
// connection to handle on its own goroutine.
func startServer(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()

	return ln.Addr().String()
}

// echoHandler acknowledges every received line with "ACK\n".
func echoHandler(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if _, err := io.WriteString(conn, "ACK\n"); err != nil {
			return
		}
	}
}

// silentHandler accepts bytes and never replies.
func silentHandler(conn net.Conn) {
	defer conn.Close()
	io.Copy(io.Discard, conn)
}

// closedPort returns an address nothing is listening on.
func closedPort(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestBurstWorkerWithAcks(t *testing.T) {
	addr := startServer(t, echoHandler)
	counters := stats.NewCounters()
	results := make(chan Result, 1)

	w := &Worker{ID: 1, Addr: addr, Counters: counters, AckTimeout: 200 * time.Millisecond}
	w.RunBurst(5, results)

	res := <-results
	if res.ClientID != 1 {
		t.Errorf("ClientID = %d, want 1", res.ClientID)
	}
	if res.Sent != 5 {
		t.Errorf("Sent = %d, want 5", res.Sent)
	}
	if res.Received != 5 {
		t.Errorf("Received = %d, want 5", res.Received)
	}
	if res.FailedConn || res.FailedSends != 0 {
		t.Errorf("unexpected failures: %+v", res)
	}

	snap := counters.Snapshot()
	if snap.Sent != res.Sent || snap.Received != res.Received {
		t.Errorf("counters %+v disagree with result %+v", snap, res)
	}
}

func TestBurstWorkerNoAcksIsNotAFailure(t *testing.T) {
	addr := startServer(t, silentHandler)
	counters := stats.NewCounters()
	results := make(chan Result, 1)

	w := &Worker{ID: 2, Addr: addr, Counters: counters, AckTimeout: 50 * time.Millisecond}

	start := time.Now()
	w.RunBurst(3, results)
	elapsed := time.Since(start)

	res := <-results
	if res.Sent != 3 {
		t.Errorf("Sent = %d, want 3", res.Sent)
	}
	if res.Received != 0 {
		t.Errorf("Received = %d, want 0", res.Received)
	}
	if res.FailedSends != 0 {
		t.Errorf("ack timeouts must not count as failures, got FailedSends = %d", res.FailedSends)
	}
	// 3 ack windows of 50ms each, plus generous scheduling slack.
	if elapsed > 2*time.Second {
		t.Errorf("worker took %v, expected to stay within the ack timeout bound", elapsed)
	}
}

func TestBurstWorkerConnectFailure(t *testing.T) {
	counters := stats.NewCounters()
	results := make(chan Result, 1)

	w := &Worker{ID: 3, Addr: closedPort(t), Counters: counters, ConnectTimeout: time.Second}
	w.RunBurst(10, results)

	res := <-results
	if !res.FailedConn {
		t.Error("expected FailedConn to be set")
	}
	if res.Sent != 0 || res.Received != 0 {
		t.Errorf("expected zero traffic after connect failure, got %+v", res)
	}
	if len(results) != 0 {
		t.Error("worker must publish exactly one result")
	}

	snap := counters.Snapshot()
	if snap.FailedConns != 1 {
		t.Errorf("FailedConns = %d, want 1", snap.FailedConns)
	}
}

func TestBurstWorkerFrameFormat(t *testing.T) {
	lines := make(chan string, 16)
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- scanner.Text()
			io.WriteString(conn, "ACK\n")
		}
	})

	counters := stats.NewCounters()
	results := make(chan Result, 1)
	w := &Worker{ID: 7, Addr: addr, Counters: counters, AckTimeout: 200 * time.Millisecond}
	w.RunBurst(3, results)
	<-results

	for i := 0; i < 3; i++ {
		select {
		case line := <-lines:
			prefix := "[Client-7][Msg-"
			if !strings.HasPrefix(line, prefix) {
				t.Fatalf("frame %q missing prefix %q", line, prefix)
			}
			payload := line[strings.Index(line, "] ")+2:]
			found := false
			for _, sample := range sampleMessages {
				if payload == sample {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("payload %q not in the sample catalog", payload)
			}
		case <-time.After(time.Second):
			t.Fatal("server did not receive all frames")
		}
	}
}

func TestSustainedWorkerStopsAtDeadline(t *testing.T) {
	addr := startServer(t, silentHandler)
	counters := stats.NewCounters()
	results := make(chan Result, 1)

	w := &Worker{ID: 4, Addr: addr, Counters: counters}

	duration := 250 * time.Millisecond
	start := time.Now()
	w.RunSustained(start.Add(duration), results)
	elapsed := time.Since(start)

	res := <-results
	if res.Sent == 0 {
		t.Error("expected at least one send before the deadline")
	}
	if res.FailedConn || res.FailedSends != 0 {
		t.Errorf("unexpected failures: %+v", res)
	}
	// One in-flight message plus pacing slack beyond the deadline.
	if elapsed > duration+time.Second {
		t.Errorf("worker ran %v past a %v deadline", elapsed, duration)
	}
}

func TestSustainedWorkerSendFailureIsTerminal(t *testing.T) {
	// Server closes the connection after the first line; subsequent writes
	// fail once the reset is observed.
	addr := startServer(t, func(conn net.Conn) {
		scanner := bufio.NewScanner(conn)
		scanner.Scan()
		conn.Close()
	})

	counters := stats.NewCounters()
	results := make(chan Result, 1)
	w := &Worker{ID: 5, Addr: addr, Counters: counters}

	deadline := time.Now().Add(5 * time.Second)
	start := time.Now()
	w.RunSustained(deadline, results)
	elapsed := time.Since(start)

	res := <-results
	if res.FailedSends != 1 {
		t.Errorf("FailedSends = %d, want 1 (terminal failure)", res.FailedSends)
	}
	if elapsed >= 5*time.Second {
		t.Error("worker should have broken out well before the deadline")
	}
}

func TestSustainedWorkerConnectFailure(t *testing.T) {
	counters := stats.NewCounters()
	results := make(chan Result, 1)

	w := &Worker{ID: 6, Addr: closedPort(t), Counters: counters, ConnectTimeout: time.Second}
	w.RunSustained(time.Now().Add(time.Second), results)

	res := <-results
	if !res.FailedConn {
		t.Error("expected FailedConn to be set")
	}
	if snap := counters.Snapshot(); snap.FailedConns != 1 {
		t.Errorf("FailedConns = %d, want 1", snap.FailedConns)
	}
}
