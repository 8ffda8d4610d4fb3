// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type HTTPCollector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func NewHTTPCollector(r *prometheus.Registry) *HTTPCollector {
	m := &HTTPCollector{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imbiber",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imbiber",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.MustRegister(m.RequestsTotal)
	r.MustRegister(m.RequestDuration)
	return m
}

func (m *HTTPCollector) GetRequestsTotal(method, route string, code int) prometheus.Counter {
	return m.RequestsTotal.With(prometheus.Labels{
		"method": method,
		"route":  route,
		"code":   strconv.Itoa(code),
	})
}

// Middleware records every request under its chi route pattern so path
// parameters do not explode label cardinality.
func (m *HTTPCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.GetRequestsTotal(r.Method, route, status).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
