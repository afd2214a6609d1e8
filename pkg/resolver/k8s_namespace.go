package resolver

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const labelPolicyEnforce = "pod-security.kubernetes.io/enforce"

// K8sNamespaceResolver reads the pod-security enforce label off a live
// cluster's Namespace object via client-go.
type K8sNamespaceResolver struct {
	Client kubernetes.Interface
}

// NewK8sNamespaceResolver wraps an already-configured client-go clientset.
func NewK8sNamespaceResolver(client kubernetes.Interface) *K8sNamespaceResolver {
	return &K8sNamespaceResolver{Client: client}
}

// PolicyLabel implements NamespaceResolver. "kube-system" never makes a
// cluster-API call: it is shortcut-mapped to "privileged" so control-plane
// pods keep working regardless of API-server reachability.
func (r *K8sNamespaceResolver) PolicyLabel(ctx context.Context, ns string) (string, error) {
	if ns == "kube-system" {
		return "privileged", nil
	}

	namespace, err := r.Client.CoreV1().Namespaces().Get(ctx, ns, metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	return labelValue(namespace), nil
}

func labelValue(ns *corev1.Namespace) string {
	if ns.Labels == nil {
		return ""
	}
	return ns.Labels[labelPolicyEnforce]
}
