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

// Package loadgen drives concurrent load against a TCP message server: one
// goroutine per configured client, a shared counter aggregate, a background
// progress monitor, and a run controller that probes, fans out, drains and
// reports.
package loadgen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tcpblast/pkg/config"
	"tcpblast/pkg/metrics"
	"tcpblast/pkg/stats"
)

const (
	// defaultProbeTimeout bounds the pre-flight connectivity check.
	defaultProbeTimeout = 5 * time.Second
	// defaultStagger spaces worker launches to smooth connection arrival
	// at the server.
	defaultStagger = 10 * time.Millisecond
)

// Runner orchestrates one load-test run: pre-flight probe, staggered worker
// fan-out, background monitoring, join/drain, and report assembly. A Runner
// is single-use; create a fresh one per run so counters start from zero.
type Runner struct {
	Config config.Config
	Logger *slog.Logger

	// Out receives the progress line and defaults to os.Stdout.
	Out io.Writer

	// ProbeTimeout and Stagger default to 5s and 10ms when zero.
	ProbeTimeout time.Duration
	Stagger      time.Duration

	// ConnectTimeout and AckTimeout override the worker defaults when set.
	ConnectTimeout time.Duration
	AckTimeout     time.Duration

	// MonitorInterval overrides the progress refresh interval when set.
	MonitorInterval time.Duration
}

// New creates a Runner for the given configuration.
func New(cfg config.Config, logger *slog.Logger) *Runner {
	return &Runner{Config: cfg, Logger: logger}
}

// Run executes the full run state machine and returns the final report.
// It returns an error only when the run never started: invalid
// configuration or a failed connectivity probe. Worker-level failures are
// reported through the counters, never as an error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	cfg := r.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.New()
	logger := r.logger().With(slog.String("run_id", runID.String()))

	// Fail fast before spawning doomed workers.
	if err := r.probe(); err != nil {
		return nil, fmt.Errorf("server %s is unreachable: %w", cfg.Addr(), err)
	}
	logger.Info("server is reachable", slog.String("addr", cfg.Addr()))

	var exporter *metrics.Exporter
	var observers []stats.Observer
	if cfg.MetricsAddr != "" {
		exporter = metrics.NewExporter()
		observers = append(observers, exporter)
	}
	counters := stats.NewCounters(observers...)

	results := make(chan Result, cfg.Clients)
	start := time.Now()
	deadline := start.Add(cfg.Duration)

	planned := int64(0)
	dropped := int64(0)
	if cfg.Mode == config.ModeBurst {
		planned = int64(cfg.PlannedTotal())
		dropped = int64(cfg.TotalMessages) - planned
	}

	// Background activities: progress line, optional metrics endpoint.
	// A run is never cancelled mid-flight; the background context only
	// exists to wind these down once the workers have drained.
	bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()
	var background errgroup.Group

	monitor := &ProgressMonitor{
		Counters: counters,
		Planned:  planned,
		Interval: r.MonitorInterval,
		Out:      r.out(),
		Exporter: exporter,
	}
	background.Go(func() error { return monitor.Run(bgCtx, start) })
	if exporter != nil {
		background.Go(func() error { return exporter.Serve(bgCtx, cfg.MetricsAddr) })
	}

	logger.Info("starting workers",
		slog.String("mode", string(cfg.Mode)),
		slog.Int("clients", cfg.Clients))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Clients; i++ {
		worker := &Worker{
			ID:             i,
			Addr:           cfg.Addr(),
			Counters:       counters,
			Logger:         logger,
			ConnectTimeout: r.ConnectTimeout,
			AckTimeout:     r.AckTimeout,
			BandwidthLimit: cfg.BandwidthLimit,
		}

		wg.Add(1)
		if exporter != nil {
			exporter.WorkerStarted()
		}
		go func() {
			defer wg.Done()
			if exporter != nil {
				defer exporter.WorkerFinished()
			}
			switch cfg.Mode {
			case config.ModeBurst:
				worker.RunBurst(cfg.PerClient(), results)
			case config.ModeSustained:
				worker.RunSustained(deadline, results)
			}
		}()

		time.Sleep(r.stagger())
	}

	// Drain: every worker publishes exactly one result before wg.Done, so
	// after Wait the channel holds all of them and the counters are final.
	wg.Wait()
	duration := time.Since(start)
	close(results)

	stopBackground()
	_ = background.Wait()

	collected := 0
	for range results {
		collected++
	}
	if collected != cfg.Clients {
		logger.Error("result count mismatch",
			slog.Int("expected", cfg.Clients), slog.Int("got", collected))
	}

	final := counters.Snapshot()
	report := &Report{
		RunID:           runID,
		Mode:            cfg.Mode,
		Duration:        duration,
		PlannedTotal:    planned,
		DroppedFromPlan: dropped,
		Sent:            final.Sent,
		Received:        final.Received,
		FailedConns:     final.FailedConns,
		FailedSends:     final.FailedSends,
	}

	logger.Info("run complete",
		slog.Int64("sent", final.Sent),
		slog.Int64("received", final.Received),
		slog.Int64("failed", final.Failed()),
		slog.String("duration", duration.Round(10*time.Millisecond).String()))

	return report, nil
}

// probe performs one best-effort connect-and-close against the target.
func (r *Runner) probe() error {
	timeout := r.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	conn, err := net.DialTimeout("tcp", r.Config.Addr(), timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (r *Runner) stagger() time.Duration {
	if r.Stagger > 0 {
		return r.Stagger
	}
	return defaultStagger
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
