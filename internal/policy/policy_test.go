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

package policy

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/sets"
)

func TestPolicy(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Policy Unit Tests")
}

func deploymentWithSelector(selector map[string]string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "team-a"},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{NodeSelector: selector},
			},
		},
	}
}

var _ = Describe("Policy", func() {
	Context("IsCompliant", func() {
		DescribeTable("node selector presence",
			func(d *appsv1.Deployment, expected bool) {
				Expect(IsCompliant(d)).To(Equal(expected))
			},
			Entry("single entry", deploymentWithSelector(map[string]string{"pool": "general"}), true),
			Entry("several entries", deploymentWithSelector(map[string]string{"pool": "general", "zone": "a"}), true),
			Entry("empty map", deploymentWithSelector(map[string]string{}), false),
			Entry("nil map", deploymentWithSelector(nil), false),
			Entry("no spec at all", &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "bare"}}, false),
			Entry("nil deployment", nil, false),
		)
	})

	Context("IsExcluded", func() {
		ignored := sets.New("kube-system", "monitoring")

		It("should match names in the set exactly", func() {
			Expect(IsExcluded("kube-system", ignored)).To(BeTrue())
			Expect(IsExcluded("monitoring", ignored)).To(BeTrue())
		})

		It("should not normalize or prefix-match", func() {
			Expect(IsExcluded("Kube-System", ignored)).To(BeFalse())
			Expect(IsExcluded("kube-system-extra", ignored)).To(BeFalse())
			Expect(IsExcluded(" kube-system", ignored)).To(BeFalse())
			Expect(IsExcluded("kube", ignored)).To(BeFalse())
		})

		It("should exclude nothing when the set is empty or nil", func() {
			Expect(IsExcluded("default", sets.New[string]())).To(BeFalse())
			Expect(IsExcluded("default", nil)).To(BeFalse())
			Expect(IsExcluded("", nil)).To(BeFalse())
		})
	})

	Context("ParseNamespaceList", func() {
		It("should trim entries and drop empty ones", func() {
			parsed := ParseNamespaceList(" kube-system, monitoring ,, ,flux-system")
			Expect(sets.List(parsed)).To(Equal([]string{"flux-system", "kube-system", "monitoring"}))
		})

		It("should return an empty set for empty input", func() {
			Expect(ParseNamespaceList("")).To(BeEmpty())
			Expect(ParseNamespaceList(" , ,")).To(BeEmpty())
		})

		It("should never match a whitespace-only namespace", func() {
			Expect(IsExcluded(" ", ParseNamespaceList("a, ,b"))).To(BeFalse())
			Expect(IsExcluded("", ParseNamespaceList("a,,b"))).To(BeFalse())
		})
	})

	Context("RefOf", func() {
		It("should use the object's namespace and name", func() {
			ref := RefOf(deploymentWithSelector(nil))
			Expect(ref).To(Equal(WorkloadRef{Namespace: "team-a", Name: "web"}))
			Expect(ref.String()).To(Equal("team-a/web"))
		})

		It("should default missing fields", func() {
			Expect(RefOf(&appsv1.Deployment{}).String()).To(Equal("default/unknown"))
			Expect(RefOf(nil).String()).To(Equal("default/unknown"))
			Expect(RefOf(&appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "api"}}).String()).To(Equal("default/api"))
		})
	})
})
