package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	netv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/skillcoder/sandboxd/internal/logic/tenant"
)

func (a *Adapter) NamespaceExistsQuery(
	ctx context.Context,
	name string,
) (bool, error) {
	_, err := a.clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("get namespace: %w", err)
	}

	return true, nil
}

func (a *Adapter) CreateNamespaceCommand(
	ctx context.Context,
	name string,
	labels map[string]string,
) error {
	namespace := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: labels,
		},
	}

	_, err := a.clientset.CoreV1().Namespaces().Create(ctx, namespace, metav1.CreateOptions{})
	if err != nil {
		// A concurrent check-then-create race lost to another writer; the
		// platform's duplicate rejection is the final safety net.
		if apierrors.IsAlreadyExists(err) {
			return nil
		}

		return fmt.Errorf("create namespace: %w", err)
	}

	return nil
}

func (a *Adapter) CreateServiceAccountCommand(
	ctx context.Context,
	namespace,
	name string,
) error {
	serviceAccount := &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
	}

	_, err := a.clientset.CoreV1().ServiceAccounts(namespace).Create(
		ctx,
		serviceAccount,
		metav1.CreateOptions{},
	)
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}

		return fmt.Errorf("create service account: %w", err)
	}

	return nil
}

func (a *Adapter) CreateRoleCommand(
	ctx context.Context,
	namespace,
	name string,
	labels map[string]string,
) error {
	// Namespace-scoped only: no cluster-wide verbs ever appear here.
	role := &rbacv1.Role{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    labels,
		},
		Rules: []rbacv1.PolicyRule{
			{
				APIGroups: []string{""},
				Resources: []string{
					"pods",
					"pods/log",
					"pods/exec",
					"services",
					"persistentvolumeclaims",
					"configmaps",
					"secrets",
				},
				Verbs: []string{"get", "list", "watch", "create", "update", "patch", "delete"},
			},
			{
				APIGroups: []string{"apps"},
				Resources: []string{"deployments"},
				Verbs:     []string{"get", "list", "watch", "create", "update", "patch", "delete"},
			},
		},
	}

	_, err := a.clientset.RbacV1().Roles(namespace).Create(ctx, role, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}

		return fmt.Errorf("create role: %w", err)
	}

	return nil
}

func (a *Adapter) CreateRoleBindingCommand(
	ctx context.Context,
	namespace,
	name,
	roleName,
	serviceAccountName string,
) error {
	binding := &rbacv1.RoleBinding{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Subjects: []rbacv1.Subject{
			{
				Kind:      rbacv1.ServiceAccountKind,
				Name:      serviceAccountName,
				Namespace: namespace,
			},
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "Role",
			Name:     roleName,
		},
	}

	_, err := a.clientset.RbacV1().RoleBindings(namespace).Create(
		ctx,
		binding,
		metav1.CreateOptions{},
	)
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}

		return fmt.Errorf("create role binding: %w", err)
	}

	return nil
}

func (a *Adapter) CreateResourceQuotaCommand(
	ctx context.Context,
	namespace,
	name string,
	hard tenant.QuotaLimits,
) error {
	hardLimits, err := toQuotaHard(hard)
	if err != nil {
		return fmt.Errorf("build quota limits: %w", err)
	}

	quota := &corev1.ResourceQuota{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Spec: corev1.ResourceQuotaSpec{
			Hard: hardLimits,
		},
	}

	_, err = a.clientset.CoreV1().ResourceQuotas(namespace).Create(
		ctx,
		quota,
		metav1.CreateOptions{},
	)
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}

		return fmt.Errorf("create resource quota: %w", err)
	}

	return nil
}

func (a *Adapter) CreateNetworkPolicyCommand(
	ctx context.Context,
	namespace,
	name string,
) error {
	// Inbound restricted to same-namespace peers; egress stays unrestricted
	// by listing only the Ingress policy type.
	policy := &netv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Spec: netv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{},
			Ingress: []netv1.NetworkPolicyIngressRule{
				{
					From: []netv1.NetworkPolicyPeer{
						{
							NamespaceSelector: &metav1.LabelSelector{
								MatchLabels: map[string]string{
									"kubernetes.io/metadata.name": namespace,
								},
							},
						},
					},
				},
			},
			PolicyTypes: []netv1.PolicyType{netv1.PolicyTypeIngress},
		},
	}

	_, err := a.clientset.NetworkingV1().NetworkPolicies(namespace).Create(
		ctx,
		policy,
		metav1.CreateOptions{},
	)
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}

		return fmt.Errorf("create network policy: %w", err)
	}

	return nil
}

func (a *Adapter) DeleteNamespaceCommand(
	ctx context.Context,
	name string,
) error {
	err := a.clientset.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("delete namespace: %w", errNamespaceNotFound)
		}

		return fmt.Errorf("delete namespace: %w", err)
	}

	return nil
}

func toQuotaHard(limits tenant.QuotaLimits) (corev1.ResourceList, error) {
	entries := map[corev1.ResourceName]string{
		corev1.ResourcePods:                   limits.Pods,
		corev1.ResourceRequestsCPU:            limits.RequestsCPU,
		corev1.ResourceRequestsMemory:         limits.RequestsMemory,
		corev1.ResourceLimitsCPU:              limits.LimitsCPU,
		corev1.ResourceLimitsMemory:           limits.LimitsMemory,
		corev1.ResourcePersistentVolumeClaims: limits.PVCs,
		corev1.ResourceRequestsStorage:        limits.RequestsStorage,
		corev1.ResourceServices:               limits.Services,
		corev1.ResourceConfigMaps:             limits.ConfigMaps,
		corev1.ResourceSecrets:                limits.Secrets,
	}

	out := corev1.ResourceList{}

	for resourceName, raw := range entries {
		if raw == "" {
			continue
		}

		quantity, err := resource.ParseQuantity(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s quantity %q: %w", resourceName, raw, err)
		}

		out[resourceName] = quantity
	}

	return out, nil
}
