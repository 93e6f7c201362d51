// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package scheduler discovers test.yaml files under a root directory,
// partitions them into cluster and user tests, and runs each partition to
// completion at its own concurrency bound before moving to the next.
// Grounded on the reference implementation's discover_tests/run_all_tests,
// but its JoinSet loop (which stops dispatching new tests once one fails)
// is deliberately replaced with golang.org/x/sync/errgroup.Group plus
// SetLimit, bounded worker-pool concurrency where one test's failure never
// prevents its peers from running.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"blackjack.io/blackjack/internal/k8sclient"
	"blackjack.io/blackjack/internal/specs"
	"blackjack.io/blackjack/internal/testrunner"
)

// Config bounds the scheduler's two partitions' concurrency and supplies
// the default attempts budget a test.yaml doesn't override for itself.
type Config struct {
	ClusterParallel int
	UserParallel    int
	ClusterAttempts int
	UserAttempts    int
}

// Discover walks root collecting one TestSpec per directory containing a
// test.yaml. A directory that has one stops descent there (the test owns
// everything below it); a directory without one is recursed into.
func Discover(root string) ([]specs.TestSpec, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", root, err)
	}

	for _, e := range entries {
		if !e.IsDir() && e.Name() == "test.yaml" {
			spec, err := loadTestSpec(root)
			if err != nil {
				return nil, err
			}
			return []specs.TestSpec{spec}, nil
		}
	}

	var all []specs.TestSpec
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub, err := Discover(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, sub...)
	}
	return all, nil
}

func loadTestSpec(dir string) (specs.TestSpec, error) {
	path := filepath.Join(dir, "test.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return specs.TestSpec{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var spec specs.TestSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return specs.TestSpec{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	spec.Dir = dir
	return spec, nil
}

// Partition splits tests into the cluster and user sets, each sorted by
// (ordering, name); a nil ordering sorts after every explicitly ordered
// test within its partition (the alternative fixed by this implementation
// among the two the specification leaves open — see design notes).
func Partition(tests []specs.TestSpec) (cluster, user []specs.TestSpec) {
	for _, t := range tests {
		switch t.Type {
		case specs.TestTypeCluster:
			cluster = append(cluster, t)
		default:
			user = append(user, t)
		}
	}
	sortByOrderingThenName(cluster)
	sortByOrderingThenName(user)
	return cluster, user
}

func sortByOrderingThenName(tests []specs.TestSpec) {
	sort.SliceStable(tests, func(i, j int) bool {
		oi, oj := tests[i].Ordering, tests[j].Ordering
		switch {
		case oi != nil && oj != nil:
			if *oi != *oj {
				return *oi < *oj
			}
		case oi != nil && oj == nil:
			return true
		case oi == nil && oj != nil:
			return false
		}
		return tests[i].Name < tests[j].Name
	})
}

// Run executes cluster tests to completion, then user tests, each at its
// own bounded concurrency. A test's failure never aborts or skips its
// peers within the same partition.
func Run(ctx context.Context, clients *k8sclient.Clients, log logr.Logger, cfg Config, tests []specs.TestSpec) ([]testrunner.Outcome, error) {
	if len(tests) == 0 {
		return nil, fmt.Errorf("no tests found")
	}
	cluster, user := Partition(tests)
	applyDefaultAttempts(cluster, cfg.ClusterAttempts)
	applyDefaultAttempts(user, cfg.UserAttempts)

	var outcomes []testrunner.Outcome
	outcomes = append(outcomes, runPartition(ctx, clients, log, cluster, cfg.ClusterParallel)...)
	outcomes = append(outcomes, runPartition(ctx, clients, log, user, cfg.UserParallel)...)
	return outcomes, nil
}

// applyDefaultAttempts fills in a partition's configured attempts budget
// for every test that didn't request its own in test.yaml (the YAML
// decoder defaults TestSpec.Attempts to 1, which this treats as "not
// explicitly set").
func applyDefaultAttempts(tests []specs.TestSpec, defaultAttempts int) {
	if defaultAttempts < 1 {
		return
	}
	for i := range tests {
		if tests[i].Attempts <= 1 {
			tests[i].Attempts = defaultAttempts
		}
	}
}

func runPartition(ctx context.Context, clients *k8sclient.Clients, log logr.Logger, tests []specs.TestSpec, parallel int) []testrunner.Outcome {
	if len(tests) == 0 {
		return nil
	}
	if parallel < 1 {
		parallel = 1
	}

	var mu sync.Mutex
	outcomes := make([]testrunner.Outcome, 0, len(tests))

	g := &errgroup.Group{}
	g.SetLimit(parallel)
	for _, t := range tests {
		t := t
		g.Go(func() error {
			outcome := testrunner.Run(ctx, clients, log, t)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
