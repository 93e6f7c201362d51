// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Cases ported from the reference implementation's match_object.rs rstest
// table, translated from serde_json::Value literals to Go any-trees.
func TestContains(t *testing.T) {
	cases := []struct {
		name     string
		resource any
		pattern  any
		want     bool
	}{
		{
			"extra key ignored",
			map[string]any{"a": 1.0, "b": 2.0},
			map[string]any{"a": 1.0},
			true,
		},
		{
			"nested object subset",
			map[string]any{"a": 1.0, "b": map[string]any{"c": 3.0, "d": 4.0}},
			map[string]any{"b": map[string]any{"c": 3.0}},
			true,
		},
		{
			"array existential match",
			map[string]any{"a": []any{1.0, 2.0, 3.0}, "b": 4.0},
			map[string]any{"a": []any{2.0}},
			true,
		},
		{
			"array existential miss",
			map[string]any{"a": []any{1.0, 2.0, 3.0}, "b": 4.0},
			map[string]any{"a": []any{4.0}},
			false,
		},
		{
			"string array match",
			[]any{"apple", "banana", "cherry"},
			[]any{"banana"},
			true,
		},
		{
			"string array partial miss",
			[]any{"apple", "banana", "cherry"},
			[]any{"banana", "date"},
			false,
		},
		{"null equals null", nil, nil, true},
		{"null vs number", nil, 1.0, false},
		{"number equal", 1.0, 1.0, true},
		{"number unequal", 1.0, 2.0, false},
		{
			"deep equal nested",
			map[string]any{"a": map[string]any{"b": map[string]any{"c": 1.0}}},
			map[string]any{"a": map[string]any{"b": map[string]any{"c": 1.0}}},
			true,
		},
		{
			"deep nested subset",
			map[string]any{"a": map[string]any{"b": map[string]any{"c": 1.0, "d": 2.0}}},
			map[string]any{"a": map[string]any{"b": map[string]any{"c": 1.0}}},
			true,
		},
		{
			"deep nested mismatch",
			map[string]any{"a": map[string]any{"b": map[string]any{"c": 1.0}}},
			map[string]any{"a": map[string]any{"b": map[string]any{"c": 2.0}}},
			false,
		},
		{
			"array of objects match",
			map[string]any{"a": []any{
				map[string]any{"b": 1.0}, map[string]any{"b": 2.0}, map[string]any{"b": 3.0},
			}},
			map[string]any{"a": []any{map[string]any{"b": 2.0}}},
			true,
		},
		{
			"array of objects mismatch",
			map[string]any{"a": []any{
				map[string]any{"b": 1.0}, map[string]any{"b": 2.0}, map[string]any{"b": 3.0},
			}},
			map[string]any{"a": []any{map[string]any{"b": 4.0}}},
			false,
		},
		{
			"nested array subset",
			map[string]any{"a": map[string]any{"b": []any{1.0, 2.0, 3.0}}},
			map[string]any{"a": map[string]any{"b": []any{2.0, 3.0}}},
			true,
		},
		{
			"nested array mismatch",
			map[string]any{"a": map[string]any{"b": []any{1.0, 2.0, 3.0}}},
			map[string]any{"a": map[string]any{"b": []any{4.0}}},
			false,
		},
		{
			"scalar field mismatch",
			map[string]any{"a": map[string]any{"b": 1.0}},
			map[string]any{"a": map[string]any{"b": 2.0}},
			false,
		},
		{
			"bool field mismatch",
			map[string]any{"a": []any{map[string]any{"c": "foo", "b": false}}},
			map[string]any{"a": []any{map[string]any{"c": "foo", "b": true}}},
			false,
		},
		{
			"bool field match",
			map[string]any{"a": []any{map[string]any{"c": "foo", "b": true}}},
			map[string]any{"a": []any{map[string]any{"c": "foo", "b": true}}},
			true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Contains(c.resource, c.pattern))
		})
	}
}

func TestContainsPodReadyCondition(t *testing.T) {
	pod := map[string]any{
		"spec": "some_spec",
		"status": map[string]any{
			"conditions": []any{
				map[string]any{
					"lastProbeTime":      nil,
					"lastTransitionTime": "2024-11-02T15:49:19Z",
					"status":             "True",
					"type":               "Ready",
				},
				map[string]any{
					"lastProbeTime":      nil,
					"lastTransitionTime": "2024-11-02T15:49:19Z",
					"status":             "True",
					"type":               "ContainersReady",
				},
			},
		},
	}
	pattern := map[string]any{
		"status": map[string]any{
			"conditions": []any{
				map[string]any{"type": "Ready", "status": "True"},
			},
		},
	}
	assert.True(t, Contains(pod, pattern))

	notReady := map[string]any{
		"status": map[string]any{
			"conditions": []any{
				map[string]any{
					"lastProbeTime":      nil,
					"lastTransitionTime": "2024-11-02T15:49:19Z",
					"status":             "False",
					"type":               "Ready",
				},
			},
		},
	}
	assert.False(t, Contains(notReady, pattern))
}

func TestContainsEmptyPatternAlwaysMatches(t *testing.T) {
	assert.True(t, Contains(map[string]any{"a": 1.0}, map[string]any{}))
	assert.True(t, Contains(map[string]any{}, map[string]any{}))
}
