// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package specs defines the YAML schema for test specifications and their
// decoding defaults (reading test.yaml files from disk is done by package
// scheduler), as sketched in the data model: a TestSpec is an
// ordered sequence of StepSpecs, each combining watches, bucket mask
// changes, manifest applies/deletes, scripts, a sleep, and waits.
package specs

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TestType classifies a test for scheduling purposes: all cluster tests
// run to completion before any user test starts.
type TestType string

const (
	TestTypeCluster TestType = "cluster"
	TestTypeUser    TestType = "user"
)

// DefaultNamespacePlaceholder is substituted for the active test namespace
// wherever a WatchSpec or ApplySpec omits an explicit namespace.
const DefaultNamespacePlaceholder = "${BLACKJACK_NAMESPACE}"

// TestSpec is one test.yaml document plus the directory it was loaded from.
type TestSpec struct {
	Name     string     `yaml:"name"`
	Type     TestType   `yaml:"type"`
	Ordering *string    `yaml:"ordering"`
	Attempts int        `yaml:"attempts"`
	Steps    []StepSpec `yaml:"steps"`

	// Dir is injected by the loader; it is never read from YAML.
	Dir string `yaml:"-"`
}

// UnmarshalYAML applies the schema defaults (test type "user", attempts 1)
// that a bare zero value would get wrong.
func (t *TestSpec) UnmarshalYAML(value *yaml.Node) error {
	type rawTestSpec TestSpec
	raw := rawTestSpec{
		Type:     TestTypeUser,
		Attempts: 1,
	}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decoding test spec: %w", err)
	}
	if raw.Attempts < 1 {
		raw.Attempts = 1
	}
	*t = TestSpec(raw)
	return nil
}

// StepSpec is a single unit of test execution. The order these slices are
// declared in YAML carries no meaning; the step runner always executes
// watch, bucket, apply, delete, sleep, script, wait in that fixed order.
type StepSpec struct {
	Name   string       `yaml:"name"`
	Watch  []WatchSpec  `yaml:"watch"`
	Bucket []BucketSpec `yaml:"bucket"`
	Apply  []ApplySpec  `yaml:"apply"`
	Delete []ApplySpec  `yaml:"delete"`
	Script []string     `yaml:"script"`
	Sleep  int          `yaml:"sleep"`
	Wait   []WaitSpec   `yaml:"wait"`
}

// WatchSpec names a new bucket and the GVK/selectors the reflector should
// watch to populate it.
type WatchSpec struct {
	Name      string            `yaml:"name"`
	Group     string            `yaml:"group"`
	Version   string            `yaml:"version"`
	Kind      string            `yaml:"kind"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
	Fields    map[string]string `yaml:"fields"`
}

func (w *WatchSpec) UnmarshalYAML(value *yaml.Node) error {
	type rawWatchSpec WatchSpec
	raw := rawWatchSpec{Namespace: DefaultNamespacePlaceholder}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decoding watch spec: %w", err)
	}
	*w = WatchSpec(raw)
	return nil
}

// BucketOperation is one of the three event kinds a bucket mask can admit.
type BucketOperation string

const (
	OpCreate BucketOperation = "create"
	OpPatch  BucketOperation = "patch"
	OpDelete BucketOperation = "delete"
)

// AllOperations is the default mask a WatchSpec-created bucket starts with.
var AllOperations = []BucketOperation{OpCreate, OpPatch, OpDelete}

// BucketSpec re-masks an existing bucket's allowed operations.
type BucketSpec struct {
	Name       string            `yaml:"name"`
	Operations []BucketOperation `yaml:"operations"`
}

// ApplySpec names a manifest file or one-level directory of manifests.
type ApplySpec struct {
	Path              string `yaml:"path"`
	Namespace         string `yaml:"namespace"`
	OverrideNamespace bool   `yaml:"override-namespace"`
}

func (a *ApplySpec) UnmarshalYAML(value *yaml.Node) error {
	type rawApplySpec struct {
		Path              string  `yaml:"path"`
		Namespace         string  `yaml:"namespace"`
		OverrideNamespace *bool   `yaml:"override-namespace"`
	}
	raw := rawApplySpec{Namespace: DefaultNamespacePlaceholder}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decoding apply spec: %w", err)
	}
	override := true
	if raw.OverrideNamespace != nil {
		override = *raw.OverrideNamespace
	}
	*a = ApplySpec{
		Path:              raw.Path,
		Namespace:         raw.Namespace,
		OverrideNamespace: override,
	}
	return nil
}

// WaitSpec polls target's bucket snapshot against condition until it holds
// or timeout (scaled) elapses.
type WaitSpec struct {
	Target    string `yaml:"target"`
	Timeout   int    `yaml:"timeout"`
	Condition Expr   `yaml:"condition"`
}
