// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package step executes a single StepSpec's fixed operation order: start
// watches, apply bucket masks, apply manifests, delete manifests, sleep,
// run scripts, then run waits sequentially. No prior-art file in the
// reference implementation centralizes this ordering explicitly — it is
// spread across run_test.rs's run_step — so this package is grounded on
// that function's control flow, restructured into one place the way the
// teacher's controllers/resource_manager.go sequences a reconcile's
// sub-phases.
package step

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"blackjack.io/blackjack/internal/k8sclient"
	"blackjack.io/blackjack/internal/manifest"
	"blackjack.io/blackjack/internal/reflector"
	"blackjack.io/blackjack/internal/script"
	"blackjack.io/blackjack/internal/specs"
	"blackjack.io/blackjack/internal/substitute"
	"blackjack.io/blackjack/internal/taxonomy"
	"blackjack.io/blackjack/internal/wait"
)

// Runner holds the state a test's steps share: the namespace they operate
// in, the clients needed to reach the cluster, and the reflector whose
// buckets persist across steps within one test attempt.
type Runner struct {
	Clients      *k8sclient.Clients
	Reflector    *reflector.Reflector
	Namespace    string
	WorkDir      string
	TimeoutScale float64
	Log          logr.Logger
}

// Run executes spec's seven phases in order against env, returning the
// (possibly script-updated) environment and the first failure encountered.
// Any failure aborts the remaining phases.
func (r *Runner) Run(ctx context.Context, spec specs.StepSpec, env substitute.Env) (out substitute.Env, err error) {
	defer func() {
		if err != nil {
			err = taxonomy.WithStep(err, spec.Name)
		}
	}()

	log := r.Log.WithValues("step", spec.Name)

	for _, w := range spec.Watch {
		substituted, err := substitute.WatchSpec(w, env)
		if err != nil {
			return env, taxonomy.Spec(fmt.Errorf("watch %q: %w", w.Name, err))
		}
		if substituted.Namespace == "" {
			substituted.Namespace = r.Namespace
		}
		if err := r.Reflector.Start(ctx, substituted.Namespace, substituted); err != nil {
			return env, taxonomy.Spec(fmt.Errorf("starting watch %q: %w", w.Name, err))
		}
		log.V(1).Info("watch started", "bucket", w.Name)
	}

	for _, b := range spec.Bucket {
		target, ok := r.Reflector.Bucket(b.Name)
		if !ok {
			return env, taxonomy.Spec(fmt.Errorf("bucket %q: no watch declared this bucket", b.Name))
		}
		target.SetMask(b.Operations)
		log.V(1).Info("bucket mask updated", "bucket", b.Name, "operations", b.Operations)
	}

	for _, a := range spec.Apply {
		substituted, err := substitute.ApplySpec(a, env)
		if err != nil {
			return env, taxonomy.Spec(fmt.Errorf("apply %q: %w", a.Path, err))
		}
		h, err := manifest.Load(ctx, r.Clients, r.WorkDir, substituted, env)
		if err != nil {
			return env, err
		}
		if err := h.Apply(ctx); err != nil {
			return env, err
		}
		log.V(1).Info("manifest applied", "path", a.Path)
	}

	for _, d := range spec.Delete {
		substituted, err := substitute.ApplySpec(d, env)
		if err != nil {
			return env, taxonomy.Spec(fmt.Errorf("delete %q: %w", d.Path, err))
		}
		h, err := manifest.Load(ctx, r.Clients, r.WorkDir, substituted, env)
		if err != nil {
			return env, err
		}
		if err := h.Delete(ctx); err != nil {
			return env, err
		}
		log.V(1).Info("manifest deleted", "path", d.Path)
	}

	if spec.Sleep > 0 {
		select {
		case <-time.After(time.Duration(spec.Sleep) * time.Second):
		case <-ctx.Done():
			return env, taxonomy.Infra(ctx.Err())
		}
	}

	for _, scriptPath := range spec.Script {
		substituted, err := substitute.String(scriptPath, env)
		if err != nil {
			return env, taxonomy.Spec(err)
		}
		updated, err := script.Run(ctx, log, r.WorkDir, substituted, env)
		if err != nil {
			return env, err
		}
		env = updated
	}

	for _, w := range spec.Wait {
		substituted, err := substitute.WaitSpec(w, env)
		if err != nil {
			return env, taxonomy.Spec(fmt.Errorf("wait on %q: %w", w.Target, err))
		}
		target, ok := r.Reflector.Bucket(substituted.Target)
		if !ok {
			return env, taxonomy.Spec(fmt.Errorf("wait on %q: no watch declared this bucket", w.Target))
		}
		if err := wait.For(ctx, target, substituted, r.TimeoutScale); err != nil {
			return env, err
		}
		log.V(1).Info("wait satisfied", "target", w.Target)
	}

	return env, nil
}
