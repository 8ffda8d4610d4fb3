// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_RunsOnce(t *testing.T) {
	d := New(50 * time.Millisecond)
	defer d.Stop()

	var executed int64
	d.Do(func() {
		atomic.AddInt64(&executed, 1)
	})

	time.Sleep(150 * time.Millisecond)

	if got := atomic.LoadInt64(&executed); got != 1 {
		t.Errorf("expected one execution, got %d", got)
	}
}

func TestDebouncer_KeepsLatest(t *testing.T) {
	d := New(100 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	var executed []int

	for i := 0; i < 5; i++ {
		val := i
		d.Do(func() {
			mu.Lock()
			executed = append(executed, val)
			mu.Unlock()
		})
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(250 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(executed) != 1 {
		t.Fatalf("expected a single execution, got %v", executed)
	}
	if executed[0] != 4 {
		t.Errorf("expected the last submission to win, got %d", executed[0])
	}
}

func TestDebouncer_Queued(t *testing.T) {
	d := New(100 * time.Millisecond)
	defer d.Stop()

	if d.Queued() {
		t.Fatal("expected nothing queued initially")
	}

	d.Do(func() {})
	if !d.Queued() {
		t.Error("expected a queued function after Do")
	}

	time.Sleep(200 * time.Millisecond)
	if d.Queued() {
		t.Error("expected queue to drain after the delay")
	}
}

func TestDebouncer_StopFlushesPending(t *testing.T) {
	d := New(time.Hour)

	var executed int64
	d.Do(func() {
		atomic.AddInt64(&executed, 1)
	})

	d.Stop()

	if got := atomic.LoadInt64(&executed); got != 1 {
		t.Fatalf("expected pending function to run on Stop, got %d", got)
	}

	d.Do(func() {
		atomic.AddInt64(&executed, 1)
	})
	if got := atomic.LoadInt64(&executed); got != 2 {
		t.Errorf("expected synchronous execution after Stop, got %d", got)
	}

	// second Stop is a no-op
	d.Stop()
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	d := New(50 * time.Millisecond)
	defer d.Stop()

	var executed int64
	burst := func(n int) {
		for i := 0; i < n; i++ {
			d.Do(func() {
				atomic.AddInt64(&executed, 1)
			})
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(150 * time.Millisecond)
	}

	burst(3)
	burst(2)

	if got := atomic.LoadInt64(&executed); got != 2 {
		t.Errorf("expected one execution per burst, got %d", got)
	}
}
