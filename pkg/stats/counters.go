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

// Package stats holds the run-wide counter aggregate shared by every worker
// and the progress monitor. All mutation goes through a single mutex; readers
// only ever see consistent point-in-time snapshots.
package stats

import "sync"

// Delta is a batch of counter increments applied atomically.
type Delta struct {
	Sent        int64
	Received    int64
	FailedConns int64
	FailedSends int64
}

// Snapshot is a consistent copy of all counters at one point in time.
type Snapshot struct {
	Sent        int64
	Received    int64
	FailedConns int64
	FailedSends int64
}

// Failed returns the combined failure count shown on progress lines.
func (s Snapshot) Failed() int64 {
	return s.FailedConns + s.FailedSends
}

// Observer is notified of every applied delta, outside the counters' lock.
// Used to mirror counters into an external metrics registry.
type Observer interface {
	Observe(Delta)
}

// Counters is the shared aggregate. Safe for concurrent use by any number of
// goroutines.
type Counters struct {
	mu        sync.Mutex
	totals    Snapshot
	observers []Observer
}

// NewCounters creates a zeroed aggregate. Observers receive each delta after
// it has been applied; they must not call back into the Counters.
func NewCounters(observers ...Observer) *Counters {
	return &Counters{observers: observers}
}

// Add applies all increments in d under one critical section. No partial
// update is ever observable. Observers are notified after the lock is
// released so a slow exporter cannot stall workers.
func (c *Counters) Add(d Delta) {
	c.mu.Lock()
	c.totals.Sent += d.Sent
	c.totals.Received += d.Received
	c.totals.FailedConns += d.FailedConns
	c.totals.FailedSends += d.FailedSends
	c.mu.Unlock()

	for _, o := range c.observers {
		o.Observe(d)
	}
}

// Snapshot returns a consistent copy of all four counters.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totals
}
