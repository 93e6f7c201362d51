// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOutcomeIncrementsLabeledCounter(t *testing.T) {
	m := New()
	m.RecordOutcome(true)
	m.RecordOutcome(false)
	m.RecordOutcome(false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	body := scrape(t, srv.URL)
	assert.Contains(t, body, `blackjack_tests_total{outcome="passed"} 1`)
	assert.Contains(t, body, `blackjack_tests_total{outcome="failed"} 2`)
}

func TestObserveStepDurationAndWaitTimeoutAreExposed(t *testing.T) {
	m := New()
	m.ObserveStepDuration("suite-a", "apply", 1.5)
	m.RecordWaitTimeout()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	body := scrape(t, srv.URL)
	assert.Contains(t, body, "blackjack_step_duration_seconds")
	assert.Contains(t, body, `test="suite-a"`)
	assert.Contains(t, body, "blackjack_wait_timeouts_total 1")
}

func TestServeShutsDownOnContextCancellation(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

func scrape(t *testing.T, baseURL string) string {
	t.Helper()
	resp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
