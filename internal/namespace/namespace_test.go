// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

package namespace

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

var namePattern = regexp.MustCompile(`^blackjack-[a-z]+-[a-z]+-\d{4}$`)

func TestGenerateUniqueNameMatchesExpectedShape(t *testing.T) {
	typed := fake.NewSimpleClientset()
	name, err := GenerateUniqueName(context.Background(), typed)
	require.NoError(t, err)
	assert.Regexp(t, namePattern, name)
}

func TestCreateReturnsErrNamespaceExistsOnCollision(t *testing.T) {
	typed := fake.NewSimpleClientset(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: "blackjack-taken"},
	})

	err := Create(context.Background(), typed, "blackjack-taken")
	require.Error(t, err)
	var exists *ErrNamespaceExists
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "blackjack-taken", exists.Name)
}

func TestCreateSucceedsForFreshName(t *testing.T) {
	typed := fake.NewSimpleClientset()
	require.NoError(t, Create(context.Background(), typed, "blackjack-fresh"))

	_, err := typed.CoreV1().Namespaces().Get(context.Background(), "blackjack-fresh", metav1.GetOptions{})
	require.NoError(t, err)
}

func TestDeleteIsANoOpWhenNamespaceIsAlreadyGone(t *testing.T) {
	typed := fake.NewSimpleClientset()
	assert.NoError(t, Delete(context.Background(), typed, "never-existed"))
}

func TestDeleteRemovesAnExistingNamespace(t *testing.T) {
	typed := fake.NewSimpleClientset(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: "blackjack-gone-soon"},
	})

	require.NoError(t, Delete(context.Background(), typed, "blackjack-gone-soon"))

	_, err := typed.CoreV1().Namespaces().Get(context.Background(), "blackjack-gone-soon", metav1.GetOptions{})
	assert.Error(t, err)
}
