// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package manifest loads one manifest file or a one-level directory of
// manifest files, substitutes variables into the raw text, resolves each
// document's GVK against the cluster, and applies or deletes the result
// through the dynamic client using server-side apply. Grounded on the
// reference implementation's manifest.rs and file.rs, generalized from
// kube::Api<DynamicObject> to client-go's dynamic.Interface, with YAML
// decoding via sigs.k8s.io/yaml (so numeric decoding stays JSON-shaped,
// matching what the dynamic client and internal/match both expect).
package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/yaml"

	"blackjack.io/blackjack/internal/k8sclient"
	"blackjack.io/blackjack/internal/specs"
	"blackjack.io/blackjack/internal/substitute"
	"blackjack.io/blackjack/internal/taxonomy"
)

// FieldManager is the server-side apply field manager identifying every
// object blackjack applies.
const FieldManager = "blackjack"

// resource pairs a decoded object with the client needed to address it.
type resource struct {
	client dynamicResourceClient
	object *unstructured.Unstructured
}

// dynamicResourceClient is the subset of a namespaced/cluster-scoped
// dynamic resource interface manifest needs.
type dynamicResourceClient interface {
	Apply(ctx context.Context, name string, obj *unstructured.Unstructured, options metav1.ApplyOptions, subresources ...string) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, name string, options metav1.DeleteOptions, subresources ...string) error
}

// Handle is a resolved manifest ready to be applied or deleted, built once
// per ApplySpec/step invocation.
type Handle struct {
	resources []resource
}

// Load reads spec's path relative to workDir, substitutes env into the raw
// text, decodes each YAML document, resolves its GVK, and binds a dynamic
// client to it. A Namespace-kind document under an active namespace
// override is rejected as a spec error — diverging deliberately from the
// reference implementation, which silently drops it; blackjack requires
// the author to express that intent explicitly via override-namespace:
// false rather than have it happen by omission.
func Load(ctx context.Context, clients *k8sclient.Clients, workDir string, spec specs.ApplySpec, env substitute.Env) (*Handle, error) {
	path := filepath.Join(workDir, spec.Path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, taxonomy.Spec(fmt.Errorf("resolving manifest path %s: %w", path, err))
	}

	var raw string
	if info.IsDir() {
		raw, err = readYAMLFiles(path)
	} else {
		raw, err = readFile(path)
	}
	if err != nil {
		return nil, taxonomy.Spec(err)
	}

	substituted, err := substitute.ManifestText(raw, env)
	if err != nil {
		return nil, taxonomy.Spec(err)
	}

	var namespaceOverride string
	if spec.OverrideNamespace {
		namespaceOverride = spec.Namespace
	}

	return build(clients, substituted, namespaceOverride, spec.OverrideNamespace)
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return string(data), nil
}

// readYAMLFiles concatenates every *.yaml file directly inside dirname (no
// recursion), sorted by name, separated by "---\n", matching file.rs's
// read_yaml_files.
func readYAMLFiles(dirname string) (string, error) {
	entries, err := os.ReadDir(dirname)
	if err != nil {
		return "", fmt.Errorf("reading manifest directory %s: %w", dirname, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		content, err := os.ReadFile(filepath.Join(dirname, name))
		if err != nil {
			return "", fmt.Errorf("reading manifest file %s: %w", name, err)
		}
		if i > 0 {
			b.WriteString("---\n")
		}
		b.Write(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func build(clients *k8sclient.Clients, yamlText string, namespaceOverride string, overrideActive bool) (*Handle, error) {
	var resources []resource
	for _, doc := range splitDocuments(yamlText) {
		if strings.TrimSpace(doc) == "" {
			continue
		}
		obj := &unstructured.Unstructured{}
		if err := yaml.Unmarshal([]byte(doc), &obj.Object); err != nil {
			return nil, taxonomy.Spec(fmt.Errorf("decoding manifest document: %w", err))
		}
		if obj.Object == nil {
			continue
		}

		gvk := obj.GroupVersionKind()
		if overrideActive && gvk.Kind == "Namespace" {
			return nil, taxonomy.Spec(fmt.Errorf(
				"manifest document %q is a Namespace resource, which cannot be combined with an active namespace override; set override-namespace: false for this apply",
				obj.GetName()))
		}

		resolved, err := clients.ResolveGVK(gvk.Group, gvk.Version, gvk.Kind)
		if err != nil {
			return nil, taxonomy.Spec(fmt.Errorf("resolving manifest GVK %s: %w", gvk.String(), err))
		}

		if resolved.Namespaced {
			if overrideActive {
				obj.SetNamespace(namespaceOverride)
			} else if obj.GetNamespace() == "" {
				obj.SetNamespace("default")
			}
			resources = append(resources, resource{
				client: clients.Dynamic.Resource(resolved.GVR).Namespace(obj.GetNamespace()),
				object: obj,
			})
		} else {
			resources = append(resources, resource{
				client: clients.Dynamic.Resource(resolved.GVR),
				object: obj,
			})
		}
	}
	return &Handle{resources: resources}, nil
}

// splitDocuments divides raw YAML text on "---" document separators.
func splitDocuments(text string) []string {
	lines := strings.Split(text, "\n")
	var docs []string
	var current strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "---" {
			docs = append(docs, current.String())
			current.Reset()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	docs = append(docs, current.String())
	return docs
}

// Apply server-side applies every resolved document, forcing ownership
// conflicts under the "blackjack" field manager.
func (h *Handle) Apply(ctx context.Context) error {
	for _, r := range h.resources {
		applyObj := r.object.DeepCopy()
		applyObj.SetManagedFields(nil)
		_, err := r.client.Apply(ctx, applyObj.GetName(), applyObj, metav1.ApplyOptions{
			FieldManager: FieldManager,
			Force:        true,
		})
		if err != nil {
			return taxonomy.Apply(fmt.Errorf("applying %s %q: %w", r.object.GetKind(), r.object.GetName(), err))
		}
	}
	return nil
}

// Delete removes every resolved document; a 404 is treated as success
// since the desired end state (the resource is gone) already holds.
func (h *Handle) Delete(ctx context.Context) error {
	for _, r := range h.resources {
		err := r.client.Delete(ctx, r.object.GetName(), metav1.DeleteOptions{})
		if err != nil && !errors.IsNotFound(err) {
			return taxonomy.Apply(fmt.Errorf("deleting %s %q: %w", r.object.GetKind(), r.object.GetName(), err))
		}
	}
	return nil
}
