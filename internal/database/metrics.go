// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"github.com/prometheus/client_golang/prometheus"
)

type MetricsCollector struct {
	db *DB

	writesDesc            *prometheus.Desc
	writeErrorsDesc       *prometheus.Desc
	maintenanceErrorsDesc *prometheus.Desc
	writeQueueDesc        *prometheus.Desc
}

func NewMetricsCollector(db *DB) *MetricsCollector {
	return &MetricsCollector{
		db: db,
		writesDesc: prometheus.NewDesc(
			"imbiber_db_writes_total",
			"Number of statements executed by the single writer",
			nil,
			nil,
		),
		writeErrorsDesc: prometheus.NewDesc(
			"imbiber_db_write_errors_total",
			"Number of writer statements that returned an error",
			nil,
			nil,
		),
		maintenanceErrorsDesc: prometheus.NewDesc(
			"imbiber_db_maintenance_errors_total",
			"Number of failed optimize/checkpoint runs",
			nil,
			nil,
		),
		writeQueueDesc: prometheus.NewDesc(
			"imbiber_db_write_queue_depth",
			"Writes waiting for the single writer",
			nil,
			nil,
		),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.writesDesc
	ch <- c.writeErrorsDesc
	ch <- c.maintenanceErrorsDesc
	ch <- c.writeQueueDesc
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.writesDesc, prometheus.CounterValue, float64(c.db.writes.Load()))
	ch <- prometheus.MustNewConstMetric(c.writeErrorsDesc, prometheus.CounterValue, float64(c.db.writeErrors.Load()))
	ch <- prometheus.MustNewConstMetric(c.maintenanceErrorsDesc, prometheus.CounterValue, float64(c.db.maintenanceErrors.Load()))
	ch <- prometheus.MustNewConstMetric(c.writeQueueDesc, prometheus.GaugeValue, float64(len(c.db.writeCh)))
}
