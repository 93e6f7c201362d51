// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package testrunner drives one TestSpec through its attempts: namespace
// creation, sequential step execution, attempt retry on failure, and
// teardown. Grounded on the reference implementation's run_test.rs
// (run_step/run_steps/run_test), restructured into explicit retry-by-loop
// rather than recursion, and adding an attempts mechanism the original
// never implemented despite its TestTypeConfig carrying the field.
package testrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"blackjack.io/blackjack/internal/k8sclient"
	"blackjack.io/blackjack/internal/namespace"
	"blackjack.io/blackjack/internal/reflector"
	"blackjack.io/blackjack/internal/specs"
	"blackjack.io/blackjack/internal/step"
	"blackjack.io/blackjack/internal/substitute"
	"blackjack.io/blackjack/internal/taxonomy"
)

// Outcome is one test's verdict, kept deliberately small: the reporter
// only ever needs pass/fail, the step that failed, and a summary.
type Outcome struct {
	TestName  string
	Passed    bool
	Namespace string
	Attempts  int
	FailedAt  string
	Err       error
}

// cleanupGrace bounds the fire-and-forget teardown issued after a test's
// final outcome; it is never awaited by the caller.
const cleanupGrace = 60 * time.Second

// Run executes spec's attempts in sequence, stopping at the first success
// or after the final attempt fails. It never blocks the caller on
// namespace teardown: cleanup after the final attempt is detached.
func Run(ctx context.Context, clients *k8sclient.Clients, log logr.Logger, spec specs.TestSpec) Outcome {
	log = log.WithValues("test", spec.Name)

	var lastErr error
	var lastStep string
	var lastNamespace string

	for attempt := 1; attempt <= spec.Attempts; attempt++ {
		if ctx.Err() != nil {
			return Outcome{TestName: spec.Name, Passed: false, Attempts: attempt - 1, Err: taxonomy.Infra(ctx.Err())}
		}

		ns, refl, failedStep, err := runAttempt(ctx, clients, log, spec, attempt)
		lastNamespace = ns
		if err == nil {
			detachCleanup(log, clients, refl, ns)
			return Outcome{TestName: spec.Name, Passed: true, Namespace: ns, Attempts: attempt}
		}

		lastErr = err
		lastStep = failedStep
		log.Error(err, "attempt failed", "attempt", attempt, "step", failedStep)

		if attempt < spec.Attempts {
			detachCleanup(log, clients, refl, ns)
			continue
		}
		detachCleanup(log, clients, refl, ns)
	}

	return Outcome{
		TestName:  spec.Name,
		Passed:    false,
		Namespace: lastNamespace,
		Attempts:  spec.Attempts,
		FailedAt:  lastStep,
		Err:       lastErr,
	}
}

// runAttempt creates a fresh namespace and runs every step in order,
// returning as soon as a step fails or the context is cancelled (SIGINT or
// an external deadline).
func runAttempt(ctx context.Context, clients *k8sclient.Clients, log logr.Logger, spec specs.TestSpec, attempt int) (string, *reflector.Reflector, string, error) {
	ns, err := namespace.GenerateUniqueName(ctx, clients.Typed)
	if err != nil {
		return "", nil, "", taxonomy.Infra(fmt.Errorf("generating namespace name: %w", err))
	}
	if err := namespace.Create(ctx, clients.Typed, ns); err != nil {
		return ns, nil, "", taxonomy.Infra(fmt.Errorf("creating namespace: %w", err))
	}
	log.Info("attempt namespace ready", "namespace", ns, "attempt", attempt)

	refl := reflector.New(clients, log)
	env := substitute.Env{"BLACKJACK_NAMESPACE": ns}

	runner := &step.Runner{
		Clients:      clients,
		Reflector:    refl,
		Namespace:    ns,
		WorkDir:      spec.Dir,
		TimeoutScale: scaleFromContext(ctx),
		Log:          log,
	}

	for _, s := range spec.Steps {
		select {
		case <-ctx.Done():
			return ns, refl, s.Name, taxonomy.Infra(ctx.Err())
		default:
		}
		updated, err := runner.Run(ctx, s, env)
		if err != nil {
			return ns, refl, s.Name, err
		}
		env = updated
	}
	return ns, refl, "", nil
}

// detachCleanup issues namespace deletion and reflector cancellation in
// the background: the caller (and the scheduler above it) must never
// block on the cluster finishing teardown.
func detachCleanup(log logr.Logger, clients *k8sclient.Clients, refl *reflector.Reflector, ns string) {
	if ns == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupGrace)
		defer cancel()
		if refl != nil {
			if err := refl.Stop(ctx); err != nil {
				log.V(1).Info("reflector stop reported an error", "namespace", ns, "error", err.Error())
			}
		}
		if err := namespace.Delete(ctx, clients.Typed, ns); err != nil {
			log.V(1).Info("namespace deletion reported an error", "namespace", ns, "error", err.Error())
		}
	}()
}

type scaleKey struct{}

// WithTimeoutScale attaches the global --timeout-scaling multiplier to a
// context so it reaches every wait without threading a parameter through
// every call in between.
func WithTimeoutScale(ctx context.Context, scale float64) context.Context {
	return context.WithValue(ctx, scaleKey{}, scale)
}

func scaleFromContext(ctx context.Context) float64 {
	if v, ok := ctx.Value(scaleKey{}).(float64); ok {
		return v
	}
	return 1.0
}
