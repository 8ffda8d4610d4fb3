// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package debounce provides the two call-rate gates used around release checks:
// a trailing-edge Debouncer that coalesces bursts into one call, and a Cooldown
// that answers whether a keyed operation may run again yet.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs only the latest submitted function once the delay has passed
// without further submissions.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	latest  func()
	stopped bool
	running sync.WaitGroup
}

// New creates a Debouncer with the given delay.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Do schedules fn. Calls within the delay window replace the pending function.
// After Stop, fn runs synchronously.
func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		fn()
		return
	}

	d.latest = fn
	if d.timer == nil {
		d.running.Add(1)
		d.timer = time.AfterFunc(d.delay, d.fire)
	}
	d.mu.Unlock()
}

func (d *Debouncer) fire() {
	defer d.running.Done()

	d.mu.Lock()
	fn := d.latest
	d.latest = nil
	d.timer = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Queued reports whether a function is waiting to run.
func (d *Debouncer) Queued() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop flushes any pending function and waits for it to finish.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true

	var pending func()
	if d.timer != nil && d.timer.Stop() {
		pending = d.latest
		d.latest = nil
		d.timer = nil
		d.running.Done()
	}
	d.mu.Unlock()

	if pending != nil {
		pending()
	}
	d.running.Wait()
}
