// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/metrics/collector"
)

type Manager struct {
	registry         *prometheus.Registry
	imbiberCollector *ImbiberCollector
	HTTP             *collector.HTTPCollector
}

func NewManager(sources Sources) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	imbiberCollector := NewImbiberCollector(sources)
	registry.MustRegister(imbiberCollector)

	log.Info().Msg("Metrics manager initialized")

	return &Manager{
		registry:         registry,
		imbiberCollector: imbiberCollector,
		HTTP:             collector.NewHTTPCollector(registry),
	}
}

// Register adds an extra collector such as the database writer stats.
func (m *Manager) Register(c prometheus.Collector) error {
	return m.registry.Register(c)
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
