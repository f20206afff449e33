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

// Package metrics mirrors the run counters into a Prometheus registry and
// optionally serves them over HTTP while a run is in flight. The run
// contract itself stays on the in-process counter aggregate; this export is
// strictly observational.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tcpblast/pkg/stats"
)

// Exporter implements stats.Observer on top of a private Prometheus
// registry. Safe for concurrent use by multiple goroutines.
type Exporter struct {
	registry *prometheus.Registry

	sentTotal        prometheus.Counter
	acksTotal        prometheus.Counter
	failedConnsTotal prometheus.Counter
	failedSendsTotal prometheus.Counter
	throughputSent   prometheus.Gauge
	activeClients    prometheus.Gauge
}

// NewExporter creates an Exporter with all collectors registered on a fresh
// registry, so repeated runs in one process never collide.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		sentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpblast_messages_sent_total",
			Help: "Total messages written to the server",
		}),
		acksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpblast_acks_received_total",
			Help: "Total acknowledgment reads that returned data",
		}),
		failedConnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpblast_failed_connections_total",
			Help: "Total connections that could not be established",
		}),
		failedSendsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpblast_failed_sends_total",
			Help: "Total writes that failed after connecting",
		}),
		throughputSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tcpblast_throughput_sent_per_sec",
			Help: "Messages sent per second, averaged over the run",
		}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tcpblast_active_clients",
			Help: "Workers currently running",
		}),
	}

	e.registry.MustRegister(
		e.sentTotal, e.acksTotal, e.failedConnsTotal, e.failedSendsTotal,
		e.throughputSent, e.activeClients,
	)

	return e
}

// Observe mirrors one counter delta into the registry.
func (e *Exporter) Observe(d stats.Delta) {
	if d.Sent > 0 {
		e.sentTotal.Add(float64(d.Sent))
	}
	if d.Received > 0 {
		e.acksTotal.Add(float64(d.Received))
	}
	if d.FailedConns > 0 {
		e.failedConnsTotal.Add(float64(d.FailedConns))
	}
	if d.FailedSends > 0 {
		e.failedSendsTotal.Add(float64(d.FailedSends))
	}
}

// SetThroughput records the current overall send rate.
func (e *Exporter) SetThroughput(perSec float64) {
	e.throughputSent.Set(perSec)
}

// WorkerStarted and WorkerFinished track the active-client gauge.
func (e *Exporter) WorkerStarted()  { e.activeClients.Inc() }
func (e *Exporter) WorkerFinished() { e.activeClients.Dec() }

// Serve exposes /metrics on addr until ctx is cancelled. Intended to run
// under the run controller's errgroup; returns nil on clean shutdown.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
