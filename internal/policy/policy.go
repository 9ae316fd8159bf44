/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package policy classifies Deployments against the node-selector placement policy.
// Everything here is pure: no I/O, no logging, no shared state.
package policy

import (
	"fmt"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	// DefaultNamespace is reported when a workload carries no namespace.
	DefaultNamespace = "default"
	// UnknownName is reported when a workload carries no name.
	UnknownName = "unknown"
)

// WorkloadRef identifies a Deployment for reporting purposes.
type WorkloadRef struct {
	Namespace string
	Name      string
}

func (r WorkloadRef) String() string {
	return fmt.Sprintf("%s/%s", r.Namespace, r.Name)
}

// RefOf derives the reporting identity of a Deployment, substituting
// placeholders for a missing namespace or name.
func RefOf(d *appsv1.Deployment) WorkloadRef {
	ref := WorkloadRef{Namespace: DefaultNamespace, Name: UnknownName}
	if d == nil {
		return ref
	}
	if d.Namespace != "" {
		ref.Namespace = d.Namespace
	}
	if d.Name != "" {
		ref.Name = d.Name
	}
	return ref
}

// IsExcluded reports whether namespace is in the ignored set. Matching is exact.
func IsExcluded(namespace string, ignored sets.Set[string]) bool {
	return ignored.Has(namespace)
}

// IsCompliant reports whether the Deployment's pod template declares at least
// one node-selector entry. Any missing intermediate field counts as non-compliant.
func IsCompliant(d *appsv1.Deployment) bool {
	if d == nil {
		return false
	}
	return len(d.Spec.Template.Spec.NodeSelector) > 0
}

// ParseNamespaceList turns a comma-separated list into a set of namespace
// names. Entries are trimmed and empty entries are dropped.
func ParseNamespaceList(raw string) sets.Set[string] {
	out := sets.New[string]()
	for _, part := range strings.Split(raw, ",") {
		if ns := strings.TrimSpace(part); ns != "" {
			out.Insert(ns)
		}
	}
	return out
}
