// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package substitute expands ${NAME} placeholders against an explicit,
// per-test environment view. Unlike the reference implementation's
// envsubst-based substitution, which silently leaves unknown placeholders
// untouched, this package treats an unknown variable as a spec error.
// Substitution runs when a step uses the text, so an undefined variable
// fails that step after the test's namespace has been created and after the
// step's earlier phases have run; it is not detected before the test starts.
package substitute

import (
	"fmt"
	"regexp"

	"blackjack.io/blackjack/internal/specs"
)

// Env is the per-test view of BLACKJACK_* (and any other) variables
// available to substitution and to script invocations. It is always
// passed explicitly; nothing here reads or mutates process-wide
// environment state.
type Env map[string]string

// Pairs renders env as "NAME=value" strings suitable for exec.Cmd.Env.
func (env Env) Pairs() []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrUndefinedVariable is wrapped into the returned error so callers can
// classify it as a spec error via errors.As/errors.Is-friendly inspection
// of the message, matching the taxonomy in internal/taxonomy.
type ErrUndefinedVariable struct {
	Name string
}

func (e *ErrUndefinedVariable) Error() string {
	return fmt.Sprintf("undefined substitution variable %q", e.Name)
}

// String expands every ${NAME} occurrence in text. An unresolvable name is
// an error; there is no partial-success return.
func String(text string, env Env) (string, error) {
	var firstErr error
	result := placeholder.ReplaceAllStringFunc(text, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := placeholder.FindStringSubmatch(match)[1]
		value, ok := env[name]
		if !ok {
			firstErr = &ErrUndefinedVariable{Name: name}
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// JSON recursively substitutes every string leaf of a JSON-shaped tree
// (map[string]any / []any / scalars), the representation used for Expr
// One/All patterns.
func JSON(value any, env Env) (any, error) {
	switch tv := value.(type) {
	case string:
		return String(tv, env)
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, v := range tv {
			sv, err := JSON(v, env)
			if err != nil {
				return nil, err
			}
			out[k] = sv
		}
		return out, nil
	case []any:
		out := make([]any, len(tv))
		for i, v := range tv {
			sv, err := JSON(v, env)
			if err != nil {
				return nil, err
			}
			out[i] = sv
		}
		return out, nil
	default:
		return value, nil
	}
}

// ExprTree substitutes string leaves throughout a condition tree: recursively
// into and/or/not, and through the One/All pattern trees.
func ExprTree(e specs.Expr, env Env) (specs.Expr, error) {
	switch e.Kind {
	case specs.ExprAnd:
		out := make([]specs.Expr, len(e.And))
		for i, sub := range e.And {
			substituted, err := ExprTree(sub, env)
			if err != nil {
				return specs.Expr{}, err
			}
			out[i] = substituted
		}
		return specs.Expr{Kind: specs.ExprAnd, And: out}, nil
	case specs.ExprOr:
		out := make([]specs.Expr, len(e.Or))
		for i, sub := range e.Or {
			substituted, err := ExprTree(sub, env)
			if err != nil {
				return specs.Expr{}, err
			}
			out[i] = substituted
		}
		return specs.Expr{Kind: specs.ExprOr, Or: out}, nil
	case specs.ExprNot:
		substituted, err := ExprTree(*e.Not, env)
		if err != nil {
			return specs.Expr{}, err
		}
		return specs.Expr{Kind: specs.ExprNot, Not: &substituted}, nil
	case specs.ExprSize:
		return e, nil
	case specs.ExprOne, specs.ExprAll:
		pattern, err := JSON(e.Pattern, env)
		if err != nil {
			return specs.Expr{}, err
		}
		return specs.Expr{Kind: e.Kind, Pattern: pattern}, nil
	default:
		return e, nil
	}
}

// WatchSpec substitutes kind/group/version/namespace; name is a bucket
// identifier, not interpolated text.
func WatchSpec(w specs.WatchSpec, env Env) (specs.WatchSpec, error) {
	var err error
	out := w
	if out.Kind, err = String(w.Kind, env); err != nil {
		return specs.WatchSpec{}, err
	}
	if out.Group, err = String(w.Group, env); err != nil {
		return specs.WatchSpec{}, err
	}
	if out.Version, err = String(w.Version, env); err != nil {
		return specs.WatchSpec{}, err
	}
	if out.Namespace, err = String(w.Namespace, env); err != nil {
		return specs.WatchSpec{}, err
	}
	return out, nil
}

// ApplySpec substitutes path and namespace.
func ApplySpec(a specs.ApplySpec, env Env) (specs.ApplySpec, error) {
	var err error
	out := a
	if out.Path, err = String(a.Path, env); err != nil {
		return specs.ApplySpec{}, err
	}
	if out.Namespace, err = String(a.Namespace, env); err != nil {
		return specs.ApplySpec{}, err
	}
	return out, nil
}

// WaitSpec substitutes the condition tree; target and timeout are not
// interpolated text.
func WaitSpec(w specs.WaitSpec, env Env) (specs.WaitSpec, error) {
	condition, err := ExprTree(w.Condition, env)
	if err != nil {
		return specs.WaitSpec{}, err
	}
	out := w
	out.Condition = condition
	return out, nil
}

// ManifestText substitutes raw manifest YAML/JSON text before parsing, so
// that e.g. "namespace: ${BLACKJACK_NAMESPACE}" resolves without the
// manifest needing to be a full TestSpec field.
func ManifestText(text string, env Env) (string, error) {
	return String(text, env)
}
