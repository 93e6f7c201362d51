// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"testing"

	"blackjack.io/blackjack/internal/specs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEventUpsertAndDelete(t *testing.T) {
	b := New(specs.AllOperations)
	b.ApplyEvent(specs.OpCreate, "ns/pod-a/uid-1", map[string]any{"name": "pod-a", "v": 1.0})
	b.ApplyEvent(specs.OpPatch, "ns/pod-a/uid-1", map[string]any{"name": "pod-a", "v": 2.0})
	snap := b.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 2.0, snap[0].(map[string]any)["v"])

	b.ApplyEvent(specs.OpDelete, "ns/pod-a/uid-1", nil)
	assert.Empty(t, b.Snapshot())
}

func TestApplyEventCreateOnKnownKeyTreatedAsPatch(t *testing.T) {
	b := New(specs.AllOperations)
	b.ApplyEvent(specs.OpCreate, "k", map[string]any{"v": 1.0})
	b.ApplyEvent(specs.OpCreate, "k", map[string]any{"v": 2.0})
	snap := b.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 2.0, snap[0].(map[string]any)["v"])
}

func TestApplyEventPatchOnUnknownKeyRespectsCreateMask(t *testing.T) {
	withCreate := New([]specs.BucketOperation{specs.OpCreate, specs.OpPatch})
	withCreate.ApplyEvent(specs.OpPatch, "k", map[string]any{"v": 1.0})
	assert.Len(t, withCreate.Snapshot(), 1)

	withoutCreate := New([]specs.BucketOperation{specs.OpPatch})
	withoutCreate.ApplyEvent(specs.OpPatch, "k", map[string]any{"v": 1.0})
	assert.Empty(t, withoutCreate.Snapshot())
}

func TestApplyEventNoOpWhenOpMasked(t *testing.T) {
	b := New([]specs.BucketOperation{specs.OpPatch, specs.OpDelete})
	b.ApplyEvent(specs.OpCreate, "k", map[string]any{"v": 1.0})
	assert.Empty(t, b.Snapshot())
}

func TestSetMaskDoesNotRetroactivelyModifyContents(t *testing.T) {
	b := New(specs.AllOperations)
	b.ApplyEvent(specs.OpCreate, "k", map[string]any{"v": 1.0})
	b.SetMask([]specs.BucketOperation{specs.OpDelete})
	assert.Len(t, b.Snapshot(), 1)
}

// Invariant 5 (spec §8): the final snapshot equals replaying only the
// events whose op is in the mask, with create/patch as upsert-by-identity
// and delete as remove.
func TestReplayEquivalenceUnderMask(t *testing.T) {
	type event struct {
		op       specs.BucketOperation
		identity string
		value    float64
	}
	events := []event{
		{specs.OpCreate, "a", 1},
		{specs.OpCreate, "b", 1},
		{specs.OpPatch, "a", 2},
		{specs.OpDelete, "b", 0},
		{specs.OpPatch, "c", 1},
	}
	mask := []specs.BucketOperation{specs.OpCreate, specs.OpPatch}

	b := New(mask)
	replayed := map[string]float64{}
	maskSet := map[specs.BucketOperation]bool{}
	for _, op := range mask {
		maskSet[op] = true
	}
	for _, e := range events {
		b.ApplyEvent(e.op, e.identity, map[string]any{"v": e.value})
		if !maskSet[e.op] {
			continue
		}
		switch e.op {
		case specs.OpCreate, specs.OpPatch:
			replayed[e.identity] = e.value
		case specs.OpDelete:
			delete(replayed, e.identity)
		}
	}

	snap := b.Snapshot()
	got := map[float64]int{}
	for _, item := range snap {
		got[item.(map[string]any)["v"].(float64)]++
	}
	assert.Len(t, snap, len(replayed))
	want := map[float64]int{}
	for _, v := range replayed {
		want[v]++
	}
	assert.Equal(t, want, got)
}

// Invariant 6: two buckets fed the same event multiset (mod intra-stream
// order) under mask {create,patch,delete} converge to the same snapshot.
func TestTwoBucketsConvergeUnderFullMask(t *testing.T) {
	b1 := New(specs.AllOperations)
	b2 := New(specs.AllOperations)

	seq1 := func(b *Bucket) {
		b.ApplyEvent(specs.OpCreate, "a", map[string]any{"v": 1.0})
		b.ApplyEvent(specs.OpCreate, "b", map[string]any{"v": 2.0})
		b.ApplyEvent(specs.OpPatch, "a", map[string]any{"v": 3.0})
		b.ApplyEvent(specs.OpDelete, "b", nil)
	}
	seq2 := func(b *Bucket) {
		b.ApplyEvent(specs.OpCreate, "b", map[string]any{"v": 2.0})
		b.ApplyEvent(specs.OpCreate, "a", map[string]any{"v": 1.0})
		b.ApplyEvent(specs.OpDelete, "b", nil)
		b.ApplyEvent(specs.OpPatch, "a", map[string]any{"v": 3.0})
	}
	seq1(b1)
	seq2(b2)

	assert.ElementsMatch(t, b1.Snapshot(), b2.Snapshot())
}

func TestReconcilePrunesOnlyWhenDeleteMasked(t *testing.T) {
	b := New([]specs.BucketOperation{specs.OpCreate, specs.OpPatch})
	b.ApplyEvent(specs.OpCreate, "stale", map[string]any{"v": 1.0})
	b.Reconcile(map[string]any{"fresh": map[string]any{"v": 2.0}})
	snap := b.Snapshot()
	assert.Len(t, snap, 2)

	bWithDelete := New(specs.AllOperations)
	bWithDelete.ApplyEvent(specs.OpCreate, "stale", map[string]any{"v": 1.0})
	bWithDelete.Reconcile(map[string]any{"fresh": map[string]any{"v": 2.0}})
	snap2 := bWithDelete.Snapshot()
	require.Len(t, snap2, 1)
	assert.Equal(t, 2.0, snap2[0].(map[string]any)["v"])
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	b := New(specs.AllOperations)
	b.ApplyEvent(specs.OpCreate, "a", map[string]any{"nested": map[string]any{"v": 1.0}})
	snap := b.Snapshot()
	snap[0].(map[string]any)["nested"].(map[string]any)["v"] = 99.0

	again := b.Snapshot()
	assert.Equal(t, 1.0, again[0].(map[string]any)["nested"].(map[string]any)["v"])
}
