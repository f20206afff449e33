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
	"io"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/conduitio/bwlimit"
	"go.uber.org/ratelimit"

	"tcpblast/pkg/stats"
)

const (
	// defaultConnectTimeout bounds the single connect attempt per worker.
	defaultConnectTimeout = 10 * time.Second
	// defaultAckTimeout bounds the acknowledgment read after each burst
	// send. Expiring is expected under load and is not a failure.
	defaultAckTimeout = 500 * time.Millisecond
	// burstPaceRate spaces burst sends ~1ms apart per worker.
	burstPaceRate = 1000
	// sustainedPaceRate spaces sustained sends ~10ms apart per worker,
	// targeting ~100 messages/sec each.
	sustainedPaceRate = 100
)

// Result is the immutable per-worker outcome, published exactly once when
// the worker terminates for any reason.
type Result struct {
	ClientID    int
	Sent        int64
	Received    int64
	FailedConn  bool
	FailedSends int64
}

// Worker owns one TCP connection and drives its send/receive loop. Each
// worker's connection is used by that worker alone for its entire lifetime;
// there is no sharing and no pooling.
type Worker struct {
	ID       int
	Addr     string
	Counters *stats.Counters
	Logger   *slog.Logger

	// ConnectTimeout and AckTimeout default to 10s and 500ms when zero.
	ConnectTimeout time.Duration
	AckTimeout     time.Duration

	// BandwidthLimit caps the connection's read and write rate in bytes
	// per second. 0 means unlimited.
	BandwidthLimit int
}

// RunBurst connects once and sends exactly count framed messages, reading a
// short-lived acknowledgment after each successful write. A failed write is
// counted and skipped, not terminal. Exactly one Result is sent on results,
// even if the loop faults.
func (w *Worker) RunBurst(count int, results chan<- Result) {
	res := Result{ClientID: w.ID}
	defer func() {
		if r := recover(); r != nil {
			w.logger().Error("worker fault",
				slog.Int("client", w.ID), slog.Any("panic", r))
		}
		results <- res
	}()

	conn, err := w.dial()
	if err != nil {
		w.Counters.Add(stats.Delta{FailedConns: 1})
		res.FailedConn = true
		w.logger().Debug("connect failed",
			slog.Int("client", w.ID), slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w.ID)))
	pace := ratelimit.New(burstPaceRate)
	ackBuf := make([]byte, 1024)

	for i := 0; i < count; i++ {
		frame := frameBurst(w.ID, i, randomMessage(rng))

		if _, err := io.WriteString(conn, frame); err != nil {
			res.FailedSends++
			w.Counters.Add(stats.Delta{FailedSends: 1})
			pace.Take()
			continue
		}
		// Count the send before attempting the read so the monitor sees it
		// immediately.
		res.Sent++
		w.Counters.Add(stats.Delta{Sent: 1})

		acked, readFailed := w.readAck(conn, ackBuf)
		if acked {
			res.Received++
			w.Counters.Add(stats.Delta{Received: 1})
		} else if readFailed {
			res.FailedSends++
			w.Counters.Add(stats.Delta{FailedSends: 1})
		}

		pace.Take()
	}
}

// RunSustained connects once and sends framed messages at a paced rate until
// the deadline passes. Unlike burst mode, a failed send is terminal: the
// worker gives up the connection rather than retrying. No acknowledgments
// are read. Exactly one Result is sent on results.
func (w *Worker) RunSustained(deadline time.Time, results chan<- Result) {
	res := Result{ClientID: w.ID}
	defer func() {
		if r := recover(); r != nil {
			w.logger().Error("worker fault",
				slog.Int("client", w.ID), slog.Any("panic", r))
		}
		results <- res
	}()

	conn, err := w.dial()
	if err != nil {
		w.Counters.Add(stats.Delta{FailedConns: 1})
		res.FailedConn = true
		w.logger().Debug("connect failed",
			slog.Int("client", w.ID), slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w.ID)))
	pace := ratelimit.New(sustainedPaceRate)

	for time.Now().Before(deadline) {
		frame := frameSustained(w.ID, randomMessage(rng))

		if _, err := io.WriteString(conn, frame); err != nil {
			res.FailedSends++
			w.Counters.Add(stats.Delta{FailedSends: 1})
			w.logger().Warn("send failed, abandoning connection",
				slog.Int("client", w.ID), slog.String("error", err.Error()))
			break
		}
		res.Sent++
		w.Counters.Add(stats.Delta{Sent: 1})

		pace.Take()
	}
}

// readAck attempts one read within AckTimeout. acked reports whether any
// bytes arrived; any non-empty payload counts, regardless of content. A
// deadline expiry is expected under load and sets neither flag; any other
// read error sets readFailed, which the caller books as a failed send to
// match the send-path accounting.
func (w *Worker) readAck(conn net.Conn, buf []byte) (acked, readFailed bool) {
	timeout := w.AckTimeout
	if timeout <= 0 {
		timeout = defaultAckTimeout
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	n, err := conn.Read(buf)
	if n > 0 {
		return true, false
	}
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return false, false
		}
		return false, true
	}
	return false, false
}

func (w *Worker) dial() (net.Conn, error) {
	timeout := w.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	netDialer := &net.Dialer{Timeout: timeout}
	if w.BandwidthLimit > 0 {
		limited := bwlimit.NewDialer(netDialer,
			bwlimit.Byte(w.BandwidthLimit), bwlimit.Byte(w.BandwidthLimit))
		return limited.Dial("tcp", w.Addr)
	}
	return netDialer.Dial("tcp", w.Addr)
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
