// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

package reflector

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	fakediscovery "k8s.io/client-go/discovery/fake"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	kubetesting "k8s.io/client-go/testing"

	"blackjack.io/blackjack/internal/k8sclient"
	"blackjack.io/blackjack/internal/specs"
)

// These tests use Ginkgo (BDD-style Go testing framework), the same
// integration-style idiom the teacher's controllers/suite_test.go uses,
// exercised here against k8s.io/client-go/dynamic/fake rather than
// envtest since no real API server is available to the test binary.
func TestReflectorSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Reflector Suite")
}

func buildFakeClients(objects ...runtime.Object) *k8sclient.Clients {
	scheme := runtime.NewScheme()
	listKinds := map[schema.GroupVersionResource]string{podGVR: "PodList"}
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(scheme, listKinds, objects...)

	disc := &fakediscovery.FakeDiscovery{Fake: &kubetesting.Fake{}}
	disc.Resources = []*metav1.APIResourceList{
		{
			GroupVersion: "v1",
			APIResources: []metav1.APIResource{
				{Name: "pods", Namespaced: true, Kind: "Pod"},
			},
		},
	}
	return &k8sclient.Clients{Dynamic: dyn, Typed: fake.NewSimpleClientset(), Discovery: disc}
}

var _ = Describe("Reflector", func() {
	It("populates the watch's bucket from the initial list", func() {
		clients := buildFakeClients(unstructuredPod("default", "pod-a", "uid-1"))
		r := New(clients, logr.Discard())

		err := r.Start(context.Background(), "default", specs.WatchSpec{
			Name: "pods", Version: "v1", Kind: "Pod",
		})
		Expect(err).NotTo(HaveOccurred())

		b, ok := r.Bucket("pods")
		Expect(ok).To(BeTrue())
		Eventually(func() int { return len(b.Snapshot()) }).Should(Equal(1))

		Expect(r.Stop(context.Background())).To(Succeed())
	})

	It("rejects starting a second watch under the same name", func() {
		clients := buildFakeClients()
		r := New(clients, logr.Discard())

		spec := specs.WatchSpec{Name: "pods", Version: "v1", Kind: "Pod"}
		Expect(r.Start(context.Background(), "default", spec)).To(Succeed())
		Expect(r.Start(context.Background(), "default", spec)).To(HaveOccurred())

		Expect(r.Stop(context.Background())).To(Succeed())
	})
})
