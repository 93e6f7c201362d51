// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package eval evaluates condition expressions (package specs' Expr tree)
// over a bucket snapshot, per the table in the condition evaluator design:
// evaluation is pure, total, and non-short-circuit-observable.
package eval

import (
	"fmt"

	"blackjack.io/blackjack/internal/match"
	"blackjack.io/blackjack/internal/specs"
)

// Eval reports whether expr holds over snapshot.
func Eval(snapshot []any, expr specs.Expr) bool {
	switch expr.Kind {
	case specs.ExprAnd:
		for _, sub := range expr.And {
			if !Eval(snapshot, sub) {
				return false
			}
		}
		return true
	case specs.ExprOr:
		for _, sub := range expr.Or {
			if Eval(snapshot, sub) {
				return true
			}
		}
		return false
	case specs.ExprNot:
		return !Eval(snapshot, *expr.Not)
	case specs.ExprSize:
		return len(snapshot) == expr.Size
	case specs.ExprOne:
		for _, r := range snapshot {
			if match.Contains(r, expr.Pattern) {
				return true
			}
		}
		return false
	case specs.ExprAll:
		for _, r := range snapshot {
			if !match.Contains(r, expr.Pattern) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Diagnostic explains why Assert failed: the unmet expression plus the
// snapshot it was evaluated against, formatted for a one-line wait-timeout
// error summary.
type Diagnostic struct {
	Expr  specs.Expr
	Input []any
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("condition not met: %s (observed %d resource(s))", d.Expr, len(d.Input))
}

// Assert evaluates expr and returns a Diagnostic describing the failure,
// or nil if expr holds.
func Assert(snapshot []any, expr specs.Expr) *Diagnostic {
	if Eval(snapshot, expr) {
		return nil
	}
	return &Diagnostic{Expr: expr, Input: snapshot}
}
