// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

package specs

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExprKind discriminates the closed set of condition forms. Expr is modeled
// as a tagged union dispatched structurally, not via open polymorphism,
// since the set of forms is fixed by the schema.
type ExprKind int

const (
	ExprAnd ExprKind = iota
	ExprOr
	ExprNot
	ExprSize
	ExprOne
	ExprAll
)

// Expr is a node of the condition tree evaluated by package eval against a
// bucket snapshot. Exactly one of the payload fields is meaningful,
// selected by Kind.
type Expr struct {
	Kind ExprKind

	And  []Expr
	Or   []Expr
	Not  *Expr
	Size int
	// Pattern holds the partial-object pattern for One/All: an arbitrary
	// JSON-shaped tree (map[string]any / []any / scalars).
	Pattern any
}

// UnmarshalYAML decodes the payload of the first of and/or/not/size/one/all
// (checked in that order) present as a top-level key; further keys from that
// set are ignored, and a document with none of them is an error.
func (e *Expr) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		And  *[]Expr `yaml:"and"`
		Or   *[]Expr `yaml:"or"`
		Not  *Expr   `yaml:"not"`
		Size *int    `yaml:"size"`
		One  *any    `yaml:"one"`
		All  *any    `yaml:"all"`
	}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decoding condition expression: %w", err)
	}
	switch {
	case raw.And != nil:
		*e = Expr{Kind: ExprAnd, And: *raw.And}
	case raw.Or != nil:
		*e = Expr{Kind: ExprOr, Or: *raw.Or}
	case raw.Not != nil:
		*e = Expr{Kind: ExprNot, Not: raw.Not}
	case raw.Size != nil:
		*e = Expr{Kind: ExprSize, Size: *raw.Size}
	case raw.One != nil:
		*e = Expr{Kind: ExprOne, Pattern: normalizeYAML(*raw.One)}
	case raw.All != nil:
		*e = Expr{Kind: ExprAll, Pattern: normalizeYAML(*raw.All)}
	default:
		return fmt.Errorf("condition expression has none of and/or/not/size/one/all")
	}
	return nil
}

// normalizeYAML converts yaml.v3's int/int64 scalar decoding into float64,
// so Pattern trees use the same numeric representation package match
// expects from JSON-shaped data (e.g. unstructured.Unstructured.Object).
func normalizeYAML(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, val := range tv {
			out[i] = normalizeYAML(val)
		}
		return out
	case int:
		return float64(tv)
	case int64:
		return float64(tv)
	default:
		return v
	}
}

// String renders an Expr the way a failed-wait diagnostic should quote it.
func (e Expr) String() string {
	switch e.Kind {
	case ExprAnd:
		parts := make([]string, len(e.And))
		for i, sub := range e.And {
			parts[i] = sub.String()
		}
		return fmt.Sprintf("AND(%s)", strings.Join(parts, ", "))
	case ExprOr:
		parts := make([]string, len(e.Or))
		for i, sub := range e.Or {
			parts[i] = sub.String()
		}
		return fmt.Sprintf("OR(%s)", strings.Join(parts, ", "))
	case ExprNot:
		return fmt.Sprintf("NOT(%s)", e.Not.String())
	case ExprSize:
		return fmt.Sprintf("size == %d", e.Size)
	case ExprOne:
		return fmt.Sprintf("ANY(%v)", e.Pattern)
	case ExprAll:
		return fmt.Sprintf("ALL(%v)", e.Pattern)
	default:
		return "<invalid expr>"
	}
}
