// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package reflector runs one background watch per WatchSpec, translating
// the dynamic client's Added/Modified/Deleted events into bucket.ApplyEvent
// calls and adding/stripping a tracking finalizer so a deleted resource is
// observed before it disappears from the API server. Grounded on the
// reference implementation's collector.rs, generalized from its
// kube::runtime::watcher loop to client-go's dynamic Watch, and on the
// teacher's internal/finalizers.Finalizer interface shape.
package reflector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"

	"blackjack.io/blackjack/internal/bucket"
	"blackjack.io/blackjack/internal/k8sclient"
	"blackjack.io/blackjack/internal/specs"
)

// FinalizerName is added to every resource a reflector observes, so that a
// delete event is guaranteed to be seen (rather than racing the API server's
// actual removal) before the tracking finalizer is stripped again.
const FinalizerName = "blackjack.io/finalizer"

// Reflector owns one watch goroutine per WatchSpec for a single test's
// namespace and writes into a shared set of named buckets.
type Reflector struct {
	log     logr.Logger
	clients *k8sclient.Clients

	mu      sync.Mutex
	buckets map[string]*bucket.Bucket
	ifaces  map[string]dynamicNamespaceable

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Reflector with no running watches; call Start for each
// WatchSpec a step declares.
func New(clients *k8sclient.Clients, log logr.Logger) *Reflector {
	return &Reflector{
		log:     log,
		clients: clients,
		buckets: make(map[string]*bucket.Bucket),
		ifaces:  make(map[string]dynamicNamespaceable),
	}
}

// Bucket returns the named bucket, or false if no watch created it yet.
func (r *Reflector) Bucket(name string) (*bucket.Bucket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[name]
	return b, ok
}

// Start resolves spec's GVK, creates its bucket, performs the initial list
// (so that a subsequent wait observes a fully populated snapshot), and
// launches the background watch goroutine. It returns once the initial list
// has completed, matching the startup contract that a step's apply/wait
// phase never races an empty, not-yet-listed bucket.
func (r *Reflector) Start(ctx context.Context, namespace string, spec specs.WatchSpec) error {
	r.mu.Lock()
	if _, exists := r.buckets[spec.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("watch %q: a bucket with this name is already active", spec.Name)
	}
	resolved, err := r.clients.ResolveGVK(spec.Group, spec.Version, spec.Kind)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("watch %q: %w", spec.Name, err)
	}
	if !resolved.Namespaced {
		r.mu.Unlock()
		return fmt.Errorf("watch %q: %s/%s %s is not a namespaced resource", spec.Name, spec.Group, spec.Version, spec.Kind)
	}

	b := bucket.New(specs.AllOperations)
	r.buckets[spec.Name] = b
	r.mu.Unlock()

	listOpts := metav1.ListOptions{
		LabelSelector: selectorString(spec.Labels),
		FieldSelector: selectorString(spec.Fields),
	}

	iface := r.clients.Dynamic.Resource(resolved.GVR).Namespace(namespace)
	r.mu.Lock()
	r.ifaces[spec.Name] = iface
	r.mu.Unlock()

	list, err := iface.List(ctx, listOpts)
	if err != nil {
		return fmt.Errorf("watch %q: initial list: %w", spec.Name, err)
	}
	listed := make(map[string]any, len(list.Items))
	for i := range list.Items {
		item := &list.Items[i]
		identity := string(item.GetUID())
		listed[identity] = item.Object
	}
	b.Reconcile(listed)

	watchCtx := r.watchContext(ctx)
	log := r.log.WithValues("watch", spec.Name, "kind", spec.Kind)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(watchCtx, log, iface, listOpts, list.GetResourceVersion(), spec.Name, b)
	}()

	return nil
}

// watchContext returns the reflector's shared cancellation context,
// creating it from parent on first use; every watch goroutine shares one
// context so a single Stop call tears all of them down together.
func (r *Reflector) watchContext(parent context.Context) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		r.ctx, r.cancel = context.WithCancel(parent)
	}
	return r.ctx
}

// run drives a single watch for its lifetime, re-listing and re-watching
// whenever the underlying watch channel closes (expired resource version,
// apiserver restart, etc) rather than treating that as a fatal error.
func (r *Reflector) run(ctx context.Context, log logr.Logger, iface dynamicNamespaceable, listOpts metav1.ListOptions, resourceVersion, bucketName string, b *bucket.Bucket) {
	for {
		select {
		case <-ctx.Done():
			log.V(1).Info("watch stopped")
			return
		default:
		}

		opts := listOpts
		opts.ResourceVersion = resourceVersion
		w, err := iface.Watch(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error(err, "watch failed, relisting")
			resourceVersion = r.relist(ctx, log, iface, listOpts, bucketName, b)
			continue
		}

		nextVersion, relist := r.consume(ctx, log, iface, w, bucketName, b)
		w.Stop()
		if ctx.Err() != nil {
			return
		}
		if relist {
			resourceVersion = r.relist(ctx, log, iface, listOpts, bucketName, b)
			continue
		}
		resourceVersion = nextVersion
	}
}

func (r *Reflector) relist(ctx context.Context, log logr.Logger, iface dynamicNamespaceable, listOpts metav1.ListOptions, bucketName string, b *bucket.Bucket) string {
	list, err := iface.List(ctx, listOpts)
	if err != nil {
		log.Error(err, "relist failed")
		return ""
	}
	listed := make(map[string]any, len(list.Items))
	for i := range list.Items {
		item := &list.Items[i]
		listed[string(item.GetUID())] = item.Object
	}
	b.Reconcile(listed)
	return list.GetResourceVersion()
}

// consume drains one watch channel, applying bucket events and finalizer
// bookkeeping until it closes or the context is cancelled. It reports the
// last seen resource version and whether the caller should force a relist
// (the channel closed, or reported a Gone/expired error).
func (r *Reflector) consume(ctx context.Context, log logr.Logger, iface dynamicNamespaceable, w watch.Interface, bucketName string, b *bucket.Bucket) (string, bool) {
	var lastVersion string
	for {
		select {
		case <-ctx.Done():
			return lastVersion, false
		case event, ok := <-w.ResultChan():
			if !ok {
				return lastVersion, true
			}
			obj, ok := event.Object.(*unstructured.Unstructured)
			if !ok {
				if status, ok := event.Object.(*metav1.Status); ok && event.Type == watch.Error {
					log.V(1).Info("watch error event", "reason", status.Reason)
					if status.Reason == metav1.StatusReasonGone {
						return lastVersion, true
					}
				}
				continue
			}
			lastVersion = obj.GetResourceVersion()
			identity := string(obj.GetUID())

			switch event.Type {
			case watch.Added, watch.Modified:
				if obj.GetDeletionTimestamp() != nil {
					b.ApplyEvent(specs.OpDelete, identity, nil)
					r.stripFinalizer(ctx, log, iface, obj)
					continue
				}
				r.ensureFinalizer(ctx, log, iface, obj)
				op := specs.OpPatch
				if event.Type == watch.Added {
					op = specs.OpCreate
				}
				b.ApplyEvent(op, identity, obj.Object)
			case watch.Deleted:
				b.ApplyEvent(specs.OpDelete, identity, nil)
			}
		}
	}
}

func (r *Reflector) ensureFinalizer(ctx context.Context, log logr.Logger, iface dynamicNamespaceable, obj *unstructured.Unstructured) {
	for _, f := range obj.GetFinalizers() {
		if f == FinalizerName {
			return
		}
	}
	patch := []byte(fmt.Sprintf(`{"metadata":{"finalizers":["%s"]}}`, FinalizerName))
	_, err := iface.Patch(ctx, obj.GetName(), types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		log.V(1).Info("failed to add finalizer", "resource", obj.GetName(), "error", err.Error())
	}
}

func (r *Reflector) stripFinalizer(ctx context.Context, log logr.Logger, iface dynamicNamespaceable, obj *unstructured.Unstructured) {
	patch := []byte(`{"metadata":{"finalizers":null}}`)
	_, err := iface.Patch(ctx, obj.GetName(), types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		log.V(1).Info("failed to strip finalizer", "resource", obj.GetName(), "error", err.Error())
	}
}

// Stop cancels every running watch and waits for their goroutines to exit,
// then sweeps every resource still carrying the tracking finalizer (a
// resource whose delete event the watches never got to see before the test
// tore its namespace down) and strips it, mirroring the reference
// implementation's cleanup_finalizers sweep on Collector.stop.
func (r *Reflector) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.sweepFinalizers(ctx)
	return nil
}

// sweepFinalizers strips the tracking finalizer from every resource still
// present in any bucket: a resource deleted out from under its watch (e.g.
// a test tearing its own namespace down mid-step) may never generate the
// Deleted event that would normally trigger stripFinalizer.
func (r *Reflector) sweepFinalizers(ctx context.Context) {
	r.mu.Lock()
	buckets := make(map[string]*bucket.Bucket, len(r.buckets))
	for name, b := range r.buckets {
		buckets[name] = b
	}
	ifaces := make(map[string]dynamicNamespaceable, len(r.ifaces))
	for name, iface := range r.ifaces {
		ifaces[name] = iface
	}
	r.mu.Unlock()

	patch := []byte(`{"metadata":{"finalizers":null}}`)
	for name, b := range buckets {
		iface, ok := ifaces[name]
		if !ok {
			continue
		}
		for _, item := range b.Snapshot() {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			u := &unstructured.Unstructured{Object: obj}
			_, err := iface.Patch(ctx, u.GetName(), types.MergePatchType, patch, metav1.PatchOptions{})
			if err != nil && !apierrors.IsNotFound(err) {
				r.log.V(1).Info("failed to strip finalizer during sweep", "resource", u.GetName(), "error", err.Error())
			}
		}
	}
}

// dynamicNamespaceable is the subset of dynamic.ResourceInterface the
// reflector needs; declared locally so tests can supply a narrower fake.
type dynamicNamespaceable interface {
	List(ctx context.Context, opts metav1.ListOptions) (*unstructured.UnstructuredList, error)
	Watch(ctx context.Context, opts metav1.ListOptions) (watch.Interface, error)
	Patch(ctx context.Context, name string, pt types.PatchType, data []byte, options metav1.PatchOptions, subresources ...string) (*unstructured.Unstructured, error)
}

func selectorString(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
