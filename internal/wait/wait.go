// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package wait polls a single bucket snapshot against a WaitSpec's
// condition until it holds or a scaled deadline elapses. Grounded on the
// reference implementation's wait.rs, but deliberately narrowed from its
// wait_for_all (which polls every outstanding WaitSpec across every bucket
// concurrently) to one wait at a time: within a step, waits run
// sequentially, each against its own target bucket.
package wait

import (
	"context"
	"fmt"
	"time"

	"blackjack.io/blackjack/internal/bucket"
	"blackjack.io/blackjack/internal/eval"
	"blackjack.io/blackjack/internal/specs"
	"blackjack.io/blackjack/internal/taxonomy"
)

// pollInterval is the design default poll cadence, capped to the wait's
// own timeout so a sub-200ms timeout still gets at least one poll at the
// right cadence.
const pollInterval = 200 * time.Millisecond

// For scales a WaitSpec's configured timeout into the deadline actually
// applied: deadline = timeout * scale. scale == 0 is a deliberate
// immediate-failure mode (see spec §4.6, testable property 8); it is
// never treated as "no limit".
func For(ctx context.Context, b *bucket.Bucket, spec specs.WaitSpec, scale float64) error {
	deadline := time.Duration(float64(spec.Timeout) * float64(time.Second) * scale)

	if scale == 0 {
		return forceTimeoutErr(spec, b.Snapshot())
	}

	interval := pollInterval
	if deadline < interval {
		interval = deadline
	}

	start := time.Now()
	for {
		snap := b.Snapshot()
		if eval.Eval(snap, spec.Condition) {
			return nil
		}
		if time.Since(start) >= deadline {
			return timeoutErr(spec, snap)
		}
		select {
		case <-ctx.Done():
			return taxonomy.Infra(ctx.Err())
		case <-time.After(interval):
		}
	}
}

func timeoutErr(spec specs.WaitSpec, snap []any) error {
	diag := eval.Assert(snap, spec.Condition)
	if diag == nil {
		return nil
	}
	return taxonomy.WaitTimeout(fmt.Errorf("wait on %q timed out: %w", spec.Target, diag))
}

// forceTimeoutErr always produces a wait-timeout diagnostic, unlike
// timeoutErr: it backs the scale == 0 "fail every wait unconditionally"
// mode (spec §4.6, testable property 8), which must fail even when the
// condition already holds against the current snapshot.
func forceTimeoutErr(spec specs.WaitSpec, snap []any) error {
	diag := &eval.Diagnostic{Expr: spec.Condition, Input: snap}
	return taxonomy.WaitTimeout(fmt.Errorf("wait on %q timed out: %w", spec.Target, diag))
}
