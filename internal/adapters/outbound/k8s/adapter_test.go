package k8s_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	kubefake "k8s.io/client-go/kubernetes/fake"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"

	"github.com/skillcoder/sandboxd/internal/adapters/outbound/k8s"
	"github.com/skillcoder/sandboxd/internal/logic/instance"
	"github.com/skillcoder/sandboxd/internal/logic/tenant"
)

func newAdapterEmpty() (*k8s.Adapter, *kubefake.Clientset) {
	clientset := kubefake.NewClientset()
	adapter := k8s.New(slog.Default(), clientset, metricsfake.NewSimpleClientset(), nil)

	return adapter, clientset
}

func TestTenantProvisioning(t *testing.T) {
	t.Parallel()

	t.Run("namespace lifecycle", func(t *testing.T) {
		t.Parallel()

		adapter, _ := newAdapterEmpty()

		exists, err := adapter.NamespaceExistsQuery(t.Context(), "sandbox-jdoe-11")
		require.NoError(t, err)
		require.False(t, exists)

		labels := map[string]string{tenant.LabelOwner: "jdoe"}
		require.NoError(t, adapter.CreateNamespaceCommand(t.Context(), "sandbox-jdoe-11", labels))

		// Losing the check-then-create race is not an error.
		require.NoError(t, adapter.CreateNamespaceCommand(t.Context(), "sandbox-jdoe-11", labels))

		exists, err = adapter.NamespaceExistsQuery(t.Context(), "sandbox-jdoe-11")
		require.NoError(t, err)
		require.True(t, exists)

		require.NoError(t, adapter.DeleteNamespaceCommand(t.Context(), "sandbox-jdoe-11"))

		err = adapter.DeleteNamespaceCommand(t.Context(), "sandbox-jdoe-11")
		var target interface{ IsNotFound() }
		require.ErrorAs(t, err, &target)
	})

	t.Run("boundary sub-resources", func(t *testing.T) {
		t.Parallel()

		adapter, clientset := newAdapterEmpty()

		require.NoError(t, adapter.CreateNamespaceCommand(t.Context(), "sandbox-jdoe-11", nil))
		require.NoError(t, adapter.CreateServiceAccountCommand(t.Context(), "sandbox-jdoe-11", "tenant"))
		require.NoError(t, adapter.CreateRoleCommand(t.Context(), "sandbox-jdoe-11", "tenant", nil))
		require.NoError(t, adapter.CreateRoleBindingCommand(
			t.Context(), "sandbox-jdoe-11", "tenant-binding", "tenant", "tenant",
		))
		require.NoError(t, adapter.CreateResourceQuotaCommand(
			t.Context(), "sandbox-jdoe-11", "tenant-quota", tenant.DefaultQuota(),
		))
		require.NoError(t, adapter.CreateNetworkPolicyCommand(
			t.Context(), "sandbox-jdoe-11", "tenant-isolation",
		))

		role, err := clientset.RbacV1().Roles("sandbox-jdoe-11").Get(
			t.Context(), "tenant", metav1.GetOptions{},
		)
		require.NoError(t, err)
		for _, rule := range role.Rules {
			require.NotContains(t, rule.Resources, "namespaces")
		}

		quota, err := clientset.CoreV1().ResourceQuotas("sandbox-jdoe-11").Get(
			t.Context(), "tenant-quota", metav1.GetOptions{},
		)
		require.NoError(t, err)
		require.Equal(t, resource.MustParse("10"), quota.Spec.Hard[corev1.ResourcePods])

		policy, err := clientset.NetworkingV1().NetworkPolicies("sandbox-jdoe-11").Get(
			t.Context(), "tenant-isolation", metav1.GetOptions{},
		)
		require.NoError(t, err)
		require.Len(t, policy.Spec.Ingress, 1)
		require.Equal(t,
			"sandbox-jdoe-11",
			policy.Spec.Ingress[0].From[0].NamespaceSelector.MatchLabels["kubernetes.io/metadata.name"],
		)
	})
}

func TestWorkloadOperations(t *testing.T) {
	t.Parallel()

	spec := instance.PodSpec{
		Namespace:  "sandbox-jdoe-11",
		Name:       "jdoe-1",
		Image:      "sandbox-ubuntu:22.04",
		Labels:     map[string]string{instance.LabelApp: "jdoe-1"},
		Env:        map[string]string{instance.EnvWorkspaceUser: "jdoe"},
		SSHEnabled: true,
	}

	t.Run("pod create and phase query", func(t *testing.T) {
		t.Parallel()

		adapter, clientset := newAdapterEmpty()

		require.NoError(t, adapter.CreatePodCommand(t.Context(), spec))
		require.NoError(t, adapter.CreatePodCommand(t.Context(), spec))

		pod, err := clientset.CoreV1().Pods("sandbox-jdoe-11").Get(
			t.Context(), "jdoe-1", metav1.GetOptions{},
		)
		require.NoError(t, err)
		require.Equal(t, "sandbox-ubuntu:22.04", pod.Spec.Containers[0].Image)
		require.Equal(t, int32(22), pod.Spec.Containers[0].Ports[0].ContainerPort)

		capable, err := adapter.PodHasSSHPortQuery(t.Context(), "sandbox-jdoe-11", "jdoe-1")
		require.NoError(t, err)
		require.True(t, capable)

		_, err = adapter.GetPodPhaseQuery(t.Context(), "sandbox-jdoe-11", "missing")
		var target interface{ IsNotFound() }
		require.ErrorAs(t, err, &target)
	})

	t.Run("pod delete is idempotent", func(t *testing.T) {
		t.Parallel()

		adapter, _ := newAdapterEmpty()

		require.NoError(t, adapter.CreatePodCommand(t.Context(), spec))
		require.NoError(t, adapter.DeletePodCommand(t.Context(), spec.Namespace, spec.Name))
		require.NoError(t, adapter.DeletePodCommand(t.Context(), spec.Namespace, spec.Name))
	})

	t.Run("annotation patch", func(t *testing.T) {
		t.Parallel()

		adapter, clientset := newAdapterEmpty()

		require.NoError(t, adapter.CreatePodCommand(t.Context(), spec))
		require.NoError(t, adapter.SetPodAnnotationCommand(
			t.Context(), spec.Namespace, spec.Name, "example.com/ssh-users", "jdoe-1:secret",
		))

		pod, err := clientset.CoreV1().Pods(spec.Namespace).Get(
			t.Context(), spec.Name, metav1.GetOptions{},
		)
		require.NoError(t, err)
		require.Equal(t, "jdoe-1:secret", pod.Annotations["example.com/ssh-users"])
	})

	t.Run("nodeport service shape", func(t *testing.T) {
		t.Parallel()

		adapter, clientset := newAdapterEmpty()

		require.NoError(t, adapter.CreateServiceCommand(t.Context(), instance.ServiceSpec{
			Namespace:   "sandbox-jdoe-11",
			Name:        "jdoe-1-ssh",
			SelectorApp: "jdoe-1",
			NodePort:    30123,
		}))

		service, err := clientset.CoreV1().Services("sandbox-jdoe-11").Get(
			t.Context(), "jdoe-1-ssh", metav1.GetOptions{},
		)
		require.NoError(t, err)
		require.Equal(t, corev1.ServiceTypeNodePort, service.Spec.Type)
		require.Equal(t, "jdoe-1", service.Spec.Selector[instance.LabelApp])
		require.Equal(t, int32(30123), service.Spec.Ports[0].NodePort)
		require.Equal(t, int32(22), service.Spec.Ports[0].TargetPort.IntVal)

		require.NoError(t, adapter.DeleteServiceCommand(t.Context(), "sandbox-jdoe-11", "jdoe-1-ssh"))

		err = adapter.DeleteServiceCommand(t.Context(), "sandbox-jdoe-11", "jdoe-1-ssh")
		var target interface{ IsNotFound() }
		require.ErrorAs(t, err, &target)
	})
}

func TestPodUsageQuery(t *testing.T) {
	t.Parallel()

	// The generated metrics fake serves PodMetrics from the "pods" resource,
	// but NewSimpleClientset seeds the tracker under the guessed resource
	// "podmetricses", so seed via the tracker with the GVR the fake reads.
	metricsClientset := metricsfake.NewSimpleClientset()
	require.NoError(t, metricsClientset.Tracker().Create(
		metricsv1beta1.SchemeGroupVersion.WithResource("pods"),
		&metricsv1beta1.PodMetrics{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "jdoe-1",
				Namespace: "sandbox-jdoe-11",
			},
			Containers: []metricsv1beta1.ContainerMetrics{
				{
					Name: "sandbox",
					Usage: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse("250m"),
						corev1.ResourceMemory: resource.MustParse("128Mi"),
					},
				},
			},
		},
		"sandbox-jdoe-11",
	))

	adapter := k8s.New(slog.Default(), kubefake.NewClientset(), metricsClientset, nil)

	usage, err := adapter.PodUsageQuery(t.Context(), "sandbox-jdoe-11", "jdoe-1")
	require.NoError(t, err)
	require.Equal(t, int64(128*1024*1024), usage.Memory.Value())
	require.Equal(t, "250m", usage.CPU.String())

	_, err = adapter.PodUsageQuery(t.Context(), "sandbox-jdoe-11", "missing")
	var target interface{ IsNotFound() }
	require.ErrorAs(t, err, &target)
}
