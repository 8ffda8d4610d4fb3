// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bookimbiber/imbiber/internal/services/catalog"
	"github.com/bookimbiber/imbiber/internal/services/notifications"
	"github.com/bookimbiber/imbiber/internal/services/releases"
	"github.com/bookimbiber/imbiber/pkg/apicache"
)

type CacheSource interface {
	Stats() apicache.Stats
}

type CatalogSource interface {
	Stats() catalog.Stats
}

type ReleaseSource interface {
	Stats() releases.Stats
}

type NotificationSource interface {
	Stats() notifications.Stats
}

// BrokerSource is satisfied by events.Broker of any payload type.
type BrokerSource interface {
	Subscribers() int
	Published() uint64
	Dropped() uint64
}

// Sources lists what the collector reads on every scrape. Nil fields are
// skipped.
type Sources struct {
	Cache         CacheSource
	Catalog       CatalogSource
	Releases      ReleaseSource
	Notifications NotificationSource
	Brokers       map[string]BrokerSource
}

type ImbiberCollector struct {
	sources Sources

	cacheOpsDesc            *prometheus.Desc
	catalogRequestsDesc     *prometheus.Desc
	catalogFailuresDesc     *prometheus.Desc
	releaseChecksDesc       *prometheus.Desc
	releaseCooldownDesc     *prometheus.Desc
	authorsCheckedDesc      *prometheus.Desc
	authorFailuresDesc      *prometheus.Desc
	notificationsSavedDesc  *prometheus.Desc
	duplicatesSkippedDesc   *prometheus.Desc
	historyStorageErrsDesc  *prometheus.Desc
	dispatchDesc            *prometheus.Desc
	brokerSubscribersDesc   *prometheus.Desc
	brokerPublishedDesc     *prometheus.Desc
	brokerDroppedDesc       *prometheus.Desc
}

func NewImbiberCollector(sources Sources) *ImbiberCollector {
	return &ImbiberCollector{
		sources: sources,

		cacheOpsDesc: prometheus.NewDesc(
			"imbiber_cache_operations_total",
			"Catalog cache lookups by result",
			[]string{"result"},
			nil,
		),
		catalogRequestsDesc: prometheus.NewDesc(
			"imbiber_catalog_requests_total",
			"Requests sent to the upstream book catalog",
			nil,
			nil,
		),
		catalogFailuresDesc: prometheus.NewDesc(
			"imbiber_catalog_failures_total",
			"Upstream catalog requests that failed",
			nil,
			nil,
		),
		releaseChecksDesc: prometheus.NewDesc(
			"imbiber_release_checks_total",
			"New-release checks that ran past the cooldown gate",
			nil,
			nil,
		),
		releaseCooldownDesc: prometheus.NewDesc(
			"imbiber_release_cooldown_skips_total",
			"New-release checks rejected by the per-user cooldown",
			nil,
			nil,
		),
		authorsCheckedDesc: prometheus.NewDesc(
			"imbiber_release_authors_checked_total",
			"Followed authors searched for new releases",
			nil,
			nil,
		),
		authorFailuresDesc: prometheus.NewDesc(
			"imbiber_release_author_failures_total",
			"Followed author searches that failed",
			nil,
			nil,
		),
		notificationsSavedDesc: prometheus.NewDesc(
			"imbiber_release_notifications_saved_total",
			"Release notifications written to history",
			nil,
			nil,
		),
		duplicatesSkippedDesc: prometheus.NewDesc(
			"imbiber_release_notifications_duplicate_total",
			"Release notifications dropped as duplicates",
			nil,
			nil,
		),
		historyStorageErrsDesc: prometheus.NewDesc(
			"imbiber_release_history_storage_errors_total",
			"Failed reads or writes of notification history",
			nil,
			nil,
		),
		dispatchDesc: prometheus.NewDesc(
			"imbiber_notifications_total",
			"Outbound notifications by state",
			[]string{"state"},
			nil,
		),
		brokerSubscribersDesc: prometheus.NewDesc(
			"imbiber_events_subscribers",
			"Current subscribers per change stream",
			[]string{"stream"},
			nil,
		),
		brokerPublishedDesc: prometheus.NewDesc(
			"imbiber_events_published_total",
			"Change events published per stream",
			[]string{"stream"},
			nil,
		),
		brokerDroppedDesc: prometheus.NewDesc(
			"imbiber_events_dropped_total",
			"Change events dropped for slow subscribers per stream",
			[]string{"stream"},
			nil,
		),
	}
}

func (c *ImbiberCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cacheOpsDesc
	ch <- c.catalogRequestsDesc
	ch <- c.catalogFailuresDesc
	ch <- c.releaseChecksDesc
	ch <- c.releaseCooldownDesc
	ch <- c.authorsCheckedDesc
	ch <- c.authorFailuresDesc
	ch <- c.notificationsSavedDesc
	ch <- c.duplicatesSkippedDesc
	ch <- c.historyStorageErrsDesc
	ch <- c.dispatchDesc
	ch <- c.brokerSubscribersDesc
	ch <- c.brokerPublishedDesc
	ch <- c.brokerDroppedDesc
}

func (c *ImbiberCollector) Collect(ch chan<- prometheus.Metric) {
	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	if c.sources.Cache != nil {
		s := c.sources.Cache.Stats()
		counter(c.cacheOpsDesc, s.Hits, "hit")
		counter(c.cacheOpsDesc, s.Misses, "miss")
		counter(c.cacheOpsDesc, s.Expired, "expired")
		counter(c.cacheOpsDesc, s.Errors, "error")
	}

	if c.sources.Catalog != nil {
		s := c.sources.Catalog.Stats()
		counter(c.catalogRequestsDesc, s.Requests)
		counter(c.catalogFailuresDesc, s.Failures)
	}

	if c.sources.Releases != nil {
		s := c.sources.Releases.Stats()
		counter(c.releaseChecksDesc, s.Checks)
		counter(c.releaseCooldownDesc, s.CooldownSkips)
		counter(c.authorsCheckedDesc, s.AuthorsChecked)
		counter(c.authorFailuresDesc, s.AuthorFailures)
		counter(c.notificationsSavedDesc, s.NotificationsSaved)
		counter(c.duplicatesSkippedDesc, s.DuplicatesSkipped)
		counter(c.historyStorageErrsDesc, s.StorageErrors)
	}

	if c.sources.Notifications != nil {
		s := c.sources.Notifications.Stats()
		counter(c.dispatchDesc, s.Queued, "queued")
		counter(c.dispatchDesc, s.Dropped, "dropped")
		counter(c.dispatchDesc, s.Sent, "sent")
		counter(c.dispatchDesc, s.Failed, "failed")
	}

	for name, b := range c.sources.Brokers {
		if b == nil {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.brokerSubscribersDesc, prometheus.GaugeValue, float64(b.Subscribers()), name)
		counter(c.brokerPublishedDesc, b.Published(), name)
		counter(c.brokerDroppedDesc, b.Dropped(), name)
	}
}
