// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes run counters through prometheus/client_golang,
// the same library the teacher's robin/metrics package wraps around
// controller-runtime's shared registry. blackjack runs as a one-shot CLI
// rather than a long-lived manager, so it owns a private
// prometheus.Registry instead of registering into
// sigs.k8s.io/controller-runtime/pkg/metrics.Registry, and serves it only
// for the duration of one run via promhttp.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blackjack.io/blackjack/internal/taxonomy"
)

// Metrics holds the counters/histograms a run updates as tests complete.
type Metrics struct {
	registry      *prometheus.Registry
	testsTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	waitsTimedOut prometheus.Counter
}

// New creates a Metrics instance with a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		testsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blackjack_tests_total",
			Help: "Total number of tests run, labeled by outcome.",
		}, []string{"outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "blackjack_step_duration_seconds",
			Help: "Wall-clock duration of each executed step.",
		}, []string{"test", "step"}),
		waitsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blackjack_wait_timeouts_total",
			Help: "Total number of waits that exhausted their deadline.",
		}),
	}
	m.registry.MustRegister(m.testsTotal, m.stepDuration, m.waitsTimedOut)
	return m
}

// RecordOutcome increments the outcome counter: "passed" or "failed".
func (m *Metrics) RecordOutcome(passed bool) {
	if passed {
		m.testsTotal.WithLabelValues("passed").Inc()
		return
	}
	m.testsTotal.WithLabelValues("failed").Inc()
}

// ObserveStepDuration records how long one test's named step took.
func (m *Metrics) ObserveStepDuration(test, step string, seconds float64) {
	m.stepDuration.WithLabelValues(test, step).Observe(seconds)
}

// RecordWaitTimeout increments the wait-timeout counter.
func (m *Metrics) RecordWaitTimeout() {
	m.waitsTimedOut.Inc()
}

// Handler returns the promhttp handler for this Metrics' private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on addr; it runs until ctx
// is cancelled, at which point it shuts down gracefully.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return taxonomy.Infra(err)
	}
}
