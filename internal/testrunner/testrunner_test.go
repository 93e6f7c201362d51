// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

package testrunner

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"

	"blackjack.io/blackjack/internal/k8sclient"
	"blackjack.io/blackjack/internal/specs"
)

func newTestClients(t *testing.T) *k8sclient.Clients {
	t.Helper()
	scheme := runtime.NewScheme()
	dyn := dynamicfake.NewSimpleDynamicClient(scheme)
	return &k8sclient.Clients{
		Dynamic: dyn,
		Typed:   fake.NewSimpleClientset(),
	}
}

func TestRunPassesWithNoSteps(t *testing.T) {
	clients := newTestClients(t)
	spec := specs.TestSpec{Name: "empty-test", Attempts: 1, Dir: t.TempDir()}

	outcome := Run(context.Background(), clients, logr.Discard(), spec)
	require.True(t, outcome.Passed)
	assert.Equal(t, 1, outcome.Attempts)
	assert.NotEmpty(t, outcome.Namespace)
}

func TestRunFailsOnUnknownWaitBucketAndReportsFailedStep(t *testing.T) {
	clients := newTestClients(t)
	spec := specs.TestSpec{
		Name:     "waiting-test",
		Attempts: 1,
		Dir:      t.TempDir(),
		Steps: []specs.StepSpec{
			{
				Name: "only-step",
				Wait: []specs.WaitSpec{{Target: "missing", Timeout: 0, Condition: specs.Expr{Kind: specs.ExprSize, Size: 0}}},
			},
		},
	}

	outcome := Run(context.Background(), clients, logr.Discard(), spec)
	assert.False(t, outcome.Passed)
	assert.Equal(t, "only-step", outcome.FailedAt)
	assert.Error(t, outcome.Err)
}

func TestRunRetriesAcrossAttemptsWithFreshNamespaces(t *testing.T) {
	clients := newTestClients(t)
	spec := specs.TestSpec{
		Name:     "retrying-test",
		Attempts: 2,
		Dir:      t.TempDir(),
		Steps: []specs.StepSpec{
			{
				Name: "only-step",
				Wait: []specs.WaitSpec{{Target: "missing", Timeout: 0, Condition: specs.Expr{Kind: specs.ExprSize, Size: 0}}},
			},
		},
	}

	outcome := Run(context.Background(), clients, logr.Discard(), spec)
	assert.False(t, outcome.Passed)
	assert.Equal(t, 2, outcome.Attempts)
}

func TestWithTimeoutScaleIsReadableByScaleFromContext(t *testing.T) {
	ctx := WithTimeoutScale(context.Background(), 2.5)
	assert.Equal(t, 2.5, scaleFromContext(ctx))
	assert.Equal(t, 1.0, scaleFromContext(context.Background()))
}

func TestRunRespectsPreCancelledContext(t *testing.T) {
	clients := newTestClients(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	spec := specs.TestSpec{Name: "cancelled-test", Attempts: 1, Dir: t.TempDir()}
	outcome := Run(ctx, clients, logr.Discard(), spec)
	assert.False(t, outcome.Passed)
}
