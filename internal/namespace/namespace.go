// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package namespace manages the per-test-attempt namespace lifecycle:
// unique name generation, creation, and graceful-then-forced deletion.
// Grounded on the teacher's test/e2e/framework/namespace.go poll/retry
// idiom and the reference implementation's two-phase namespace.rs delete.
package namespace

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"
)

const (
	deletionPollInterval = 1 * time.Second
	deletionGraceWindow  = 10 * time.Second
	maxNameAttempts      = 20
)

// ErrNamespaceExists is returned by Create when the generated name
// collides with a live namespace. Collision retry happens only in
// GenerateUniqueName; Create itself does not retry.
type ErrNamespaceExists struct{ Name string }

func (e *ErrNamespaceExists) Error() string {
	return fmt.Sprintf("namespace %q already exists", e.Name)
}

// GenerateUniqueName produces "blackjack-<word>-<word>-<4 digits>" and
// checks it against the live cluster, retrying on collision.
func GenerateUniqueName(ctx context.Context, typed kubernetes.Interface) (string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := randomName()
		_, err := typed.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking namespace name collision: %w", err)
		}
		// exists; try again
	}
	return "", fmt.Errorf("could not find a non-colliding namespace name after %d attempts", maxNameAttempts)
}

func randomName() string {
	w1 := wordlist[rand.IntN(len(wordlist))]
	w2 := wordlist[rand.IntN(len(wordlist))]
	suffix := rand.IntN(10000)
	return fmt.Sprintf("blackjack-%s-%s-%04d", w1, w2, suffix)
}

// Create creates the namespace, returning ErrNamespaceExists on a live
// collision (the generated name was taken between GenerateUniqueName and
// Create).
func Create(ctx context.Context, typed kubernetes.Interface, name string) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: name},
	}
	_, err := typed.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return &ErrNamespaceExists{Name: name}
	}
	if err != nil {
		return fmt.Errorf("creating namespace %s: %w", name, err)
	}
	return nil
}

// Delete tears a namespace down: a graceful delete, and — if it is still
// present past the grace window — a forced delete that strips finalizers
// and requests a zero grace period. Deletion is tolerant of the namespace
// already being gone (a 404 anywhere is treated as success).
func Delete(ctx context.Context, typed kubernetes.Interface, name string) error {
	err := typed.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting namespace %s: %w", name, err)
	}

	gone, err := waitForDeletion(ctx, typed, name, deletionGraceWindow)
	if err != nil {
		return err
	}
	if gone {
		return nil
	}
	return forceDelete(ctx, typed, name)
}

func waitForDeletion(ctx context.Context, typed kubernetes.Interface, name string, timeout time.Duration) (bool, error) {
	gone := false
	err := wait.PollUntilContextTimeout(ctx, deletionPollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		_, err := typed.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			gone = true
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return false, nil
	})
	if err != nil && gone {
		// context deadline exceeded races with the final, successful poll.
		return true, nil
	}
	if err != nil && !isTimeoutErr(err) {
		return false, fmt.Errorf("waiting for namespace %s to delete: %w", name, err)
	}
	return gone, nil
}

// forceDelete strips both the metadata- and spec-level finalizer lists
// (Namespace is the one core type whose own finalizer, "kubernetes",
// lives under spec rather than metadata) and re-issues the delete with a
// zero grace period. The patch is wrapped in retry.RetryOnConflict, the
// same idiom the teacher's test/e2e/framework/namespace.go uses to strip
// finalizers, since a concurrent reconciler or finalizer-stripper could be
// touching the same namespace object.
func forceDelete(ctx context.Context, typed kubernetes.Interface, name string) error {
	patch := []byte(`{"metadata":{"finalizers":null},"spec":{"finalizers":null}}`)
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		_, err := typed.CoreV1().Namespaces().Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
		return err
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("stripping finalizers from namespace %s: %w", name, err)
	}

	zero := int64(0)
	err = typed.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{GracePeriodSeconds: &zero})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("force deleting namespace %s: %w", name, err)
	}
	_, err = waitForDeletion(ctx, typed, name, deletionGraceWindow)
	return err
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
