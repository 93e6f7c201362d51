// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package bucket implements the ordered, operation-masked collection of
// observed Kubernetes resources that a watch reflector writes into and a
// wait poll reads a point-in-time snapshot of. A bucket is single-writer
// (its owning reflector), multi-reader (concurrent wait polls), so all
// state is guarded by one RWMutex per bucket.
package bucket

import (
	"sync"

	"blackjack.io/blackjack/internal/specs"
)

// Bucket is an ordered map from resource identity to the most recently
// observed resource object, governed by a mutable operation mask.
type Bucket struct {
	mu    sync.RWMutex
	mask  map[specs.BucketOperation]bool
	data  map[string]any
	order []string
}

// New creates a bucket with the given initial mask (the design default,
// when created by a WatchSpec, is all three operations).
func New(mask []specs.BucketOperation) *Bucket {
	b := &Bucket{
		mask: make(map[specs.BucketOperation]bool, len(mask)),
		data: make(map[string]any),
	}
	for _, op := range mask {
		b.mask[op] = true
	}
	return b
}

// SetMask atomically replaces the operation mask. Existing contents are
// left untouched; only subsequent events are affected.
func (b *Bucket) SetMask(mask []specs.BucketOperation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mask = make(map[specs.BucketOperation]bool, len(mask))
	for _, op := range mask {
		b.mask[op] = true
	}
}

// ApplyEvent upserts or removes identity's resource according to op and
// the current mask:
//
//   - op not in mask: no-op.
//   - create/patch on a known identity: upsert (a create on a known key is
//     treated as a patch).
//   - create on an unknown identity: insert.
//   - patch on an unknown identity (possible across a reflector restart):
//     insert iff create is also in the mask, otherwise dropped.
//   - delete: remove the identity, regardless of whether it was known.
func (b *Bucket) ApplyEvent(op specs.BucketOperation, identity string, resource any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mask[op] {
		return
	}
	switch op {
	case specs.OpCreate, specs.OpPatch:
		if _, exists := b.data[identity]; exists {
			b.data[identity] = resource
			return
		}
		if op == specs.OpCreate || b.mask[specs.OpCreate] {
			b.data[identity] = resource
			b.order = append(b.order, identity)
		}
	case specs.OpDelete:
		if _, exists := b.data[identity]; exists {
			delete(b.data, identity)
			b.removeFromOrder(identity)
		}
	}
}

// Reconcile merges a freshly listed resource set (keyed by identity) into
// the bucket after a watch restart, per the recommended re-list rule:
// listed entries are upserted honoring create/patch mask exactly as
// ApplyEvent would, and entries absent from the listed set are pruned only
// if delete is in the mask — otherwise stale contents are preserved.
func (b *Bucket) Reconcile(listed map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for identity, resource := range listed {
		if _, exists := b.data[identity]; exists {
			if b.mask[specs.OpPatch] {
				b.data[identity] = resource
			}
			continue
		}
		if b.mask[specs.OpCreate] {
			b.data[identity] = resource
			b.order = append(b.order, identity)
		}
	}
	if !b.mask[specs.OpDelete] {
		return
	}
	for _, identity := range b.order {
		if _, present := listed[identity]; !present {
			delete(b.data, identity)
		}
	}
	b.compactOrder()
}

// Snapshot returns a deep-copied list of current values. Concurrent
// mutation during snapshotting cannot observe a torn object since the read
// lock excludes ApplyEvent/Reconcile/SetMask for its duration.
func (b *Bucket) Snapshot() []any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]any, 0, len(b.data))
	for _, identity := range b.order {
		value, ok := b.data[identity]
		if !ok {
			continue
		}
		out = append(out, deepCopy(value))
	}
	return out
}

func (b *Bucket) removeFromOrder(identity string) {
	for i, id := range b.order {
		if id == identity {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}

func (b *Bucket) compactOrder() {
	kept := b.order[:0]
	for _, id := range b.order {
		if _, ok := b.data[id]; ok {
			kept = append(kept, id)
		}
	}
	b.order = kept
}

func deepCopy(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, val := range tv {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
