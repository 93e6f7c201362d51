// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package taxonomy defines the error categories a test outcome is reported
// under: a spec problem (bad YAML, unresolvable variable, a disallowed
// manifest shape), an apply/delete failure against the cluster, a
// non-zero script exit, a wait that never observed its condition, or an
// infrastructure failure unrelated to the test itself (client
// construction, namespace lifecycle). Every error surfaced to the
// scheduler and reporter is wrapped in one of these so a run's summary can
// group failures meaningfully.
package taxonomy

import "fmt"

// Category is the coarse error class a failure is reported under.
type Category string

const (
	CategorySpec        Category = "spec"
	CategoryApply       Category = "apply"
	CategoryScript      Category = "script"
	CategoryWaitTimeout Category = "wait_timeout"
	CategoryInfra       Category = "infra"
)

// Error wraps an underlying error with the taxonomy category it belongs to
// and the step name it occurred in, if any.
type Error struct {
	Category Category
	Step     string
	Err      error
}

func (e *Error) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s (step %q): %v", e.Category, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(cat Category, err error) *Error {
	return &Error{Category: cat, Err: err}
}

// Spec wraps err as a spec-shape problem: malformed YAML, an unresolved
// substitution variable, a manifest that violates an apply constraint.
func Spec(err error) error { return newErr(CategorySpec, err) }

// Apply wraps err as a server-side apply/delete failure against the
// cluster.
func Apply(err error) error { return newErr(CategoryApply, err) }

// Script wraps err as a non-zero script exit or exec failure.
func Script(err error) error { return newErr(CategoryScript, err) }

// WaitTimeout wraps err as a wait condition that never held before its
// deadline.
func WaitTimeout(err error) error { return newErr(CategoryWaitTimeout, err) }

// Infra wraps err as a failure outside the test body itself: client
// construction, namespace create/delete, discovery.
func Infra(err error) error { return newErr(CategoryInfra, err) }

// WithStep annotates err, if it is a *Error, with the step name it
// occurred in. Errors of any other shape are returned unchanged.
func WithStep(err error, step string) error {
	if te, ok := err.(*Error); ok {
		te.Step = step
		return te
	}
	return err
}

// CategoryOf reports err's taxonomy category, defaulting to
// CategoryInfra for an error that was never wrapped through this package.
func CategoryOf(err error) Category {
	if te, ok := err.(*Error); ok {
		return te.Category
	}
	return CategoryInfra
}
