// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"runtime"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookimbiber/imbiber/internal/services/catalog"
	"github.com/bookimbiber/imbiber/internal/services/notifications"
	"github.com/bookimbiber/imbiber/internal/services/releases"
	"github.com/bookimbiber/imbiber/pkg/apicache"
	"github.com/bookimbiber/imbiber/pkg/events"
)

type fakeCache struct{ stats apicache.Stats }

func (f fakeCache) Stats() apicache.Stats { return f.stats }

type fakeCatalog struct{ stats catalog.Stats }

func (f fakeCatalog) Stats() catalog.Stats { return f.stats }

type fakeReleases struct{ stats releases.Stats }

func (f fakeReleases) Stats() releases.Stats { return f.stats }

type fakeNotifications struct{ stats notifications.Stats }

func (f fakeNotifications) Stats() notifications.Stats { return f.stats }

func TestNewManager(t *testing.T) {
	manager := NewManager(Sources{})

	assert.NotNil(t, manager)
	assert.NotNil(t, manager.registry)
	assert.NotNil(t, manager.imbiberCollector)
	assert.NotNil(t, manager.HTTP)
}

func TestManager_GetRegistry(t *testing.T) {
	manager := NewManager(Sources{})

	registry := manager.GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	foundGoMetrics := false
	foundProcessMetrics := false

	for _, mf := range metricFamilies {
		name := mf.GetName()
		if strings.HasPrefix(name, "go_") {
			foundGoMetrics = true
		}
		if strings.HasPrefix(name, "process_") {
			foundProcessMetrics = true
		}
	}

	assert.True(t, foundGoMetrics, "Go runtime metrics should be registered (go_* metrics)")
	if runtime.GOOS == "darwin" {
		assert.False(t, foundProcessMetrics, "Process metrics should NOT be available on macOS")
	} else {
		assert.True(t, foundProcessMetrics, "Process metrics should be registered on Linux/Windows")
	}
}

func TestManager_RegistryIsolation(t *testing.T) {
	manager1 := NewManager(Sources{})
	manager2 := NewManager(Sources{})

	assert.NotSame(t, manager1.registry, manager2.registry, "Each manager should have its own registry")
	assert.NotSame(t, manager1.imbiberCollector, manager2.imbiberCollector, "Each manager should have its own collector")
}

func TestImbiberCollector_NilSources(t *testing.T) {
	c := NewImbiberCollector(Sources{})
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestImbiberCollector_Collect(t *testing.T) {
	broker := events.NewBroker[releases.ChangeEvent](1)
	defer broker.Close()
	_, cancel := broker.Subscribe()
	defer cancel()
	broker.Publish(releases.ChangeEvent{})
	broker.Publish(releases.ChangeEvent{})

	c := NewImbiberCollector(Sources{
		Cache:         fakeCache{apicache.Stats{Hits: 7, Misses: 3}},
		Catalog:       fakeCatalog{catalog.Stats{Requests: 5, Failures: 1}},
		Releases:      fakeReleases{releases.Stats{Checks: 2, AuthorFailures: 1}},
		Notifications: fakeNotifications{notifications.Stats{Sent: 4}},
		Brokers:       map[string]BrokerSource{"releases": broker},
	})

	// cache 4 + catalog 2 + releases 7 + notifications 4 + broker 3
	assert.Equal(t, 20, testutil.CollectAndCount(c))

	expected := `
# HELP imbiber_cache_operations_total Catalog cache lookups by result
# TYPE imbiber_cache_operations_total counter
imbiber_cache_operations_total{result="error"} 0
imbiber_cache_operations_total{result="expired"} 0
imbiber_cache_operations_total{result="hit"} 7
imbiber_cache_operations_total{result="miss"} 3
# HELP imbiber_events_dropped_total Change events dropped for slow subscribers per stream
# TYPE imbiber_events_dropped_total counter
imbiber_events_dropped_total{stream="releases"} 1
# HELP imbiber_events_subscribers Current subscribers per change stream
# TYPE imbiber_events_subscribers gauge
imbiber_events_subscribers{stream="releases"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"imbiber_cache_operations_total", "imbiber_events_subscribers", "imbiber_events_dropped_total"))
}

func TestManager_MetricsCanBeScraped(t *testing.T) {
	manager := NewManager(Sources{Catalog: fakeCatalog{}})

	metricCount := testutil.CollectAndCount(manager.GetRegistry())

	assert.Greater(t, metricCount, 0, "Should be able to collect metrics")
}
