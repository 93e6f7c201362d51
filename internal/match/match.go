// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package match implements structural partial-object containment between a
// query pattern and an observed Kubernetes resource, both represented as
// generic JSON-shaped values (the output of unstructured.Unstructured.Object
// or any json.Unmarshal into interface{}).
package match

// Contains reports whether pattern p is structurally contained in value r:
//
//   - if p is a map, every key of p must exist in r and its value must
//     recursively contain the corresponding value in r,
//   - if p is a slice, r must be a slice and every element of p must have a
//     matching element somewhere in r (existential, order-independent,
//     duplicates allowed),
//   - otherwise p and r must be scalar-equal.
//
// Contains is total: any shape mismatch yields false rather than a panic.
func Contains(r, p any) bool {
	switch pv := p.(type) {
	case map[string]any:
		rv, ok := r.(map[string]any)
		if !ok {
			return false
		}
		for key, pval := range pv {
			rval, present := rv[key]
			if !present {
				return false
			}
			if !Contains(rval, pval) {
				return false
			}
		}
		return true
	case []any:
		rv, ok := r.([]any)
		if !ok {
			return false
		}
		for _, pelem := range pv {
			found := false
			for _, relem := range rv {
				if Contains(relem, pelem) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return scalarEqual(r, p)
	}
}

// scalarEqual compares two non-container values the way a JSON decoder
// would hand them to us: numbers as float64, strings, bools, and nil.
func scalarEqual(r, p any) bool {
	if r == nil || p == nil {
		return r == nil && p == nil
	}
	switch pv := p.(type) {
	case float64:
		switch rv := r.(type) {
		case float64:
			return rv == pv
		case int64:
			return float64(rv) == pv
		case int:
			return float64(rv) == pv
		default:
			return false
		}
	case int64:
		return scalarEqual(r, float64(pv))
	case int:
		return scalarEqual(r, float64(pv))
	default:
		return r == p
	}
}
