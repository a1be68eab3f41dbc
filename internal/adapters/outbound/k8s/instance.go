package k8s

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/skillcoder/sandboxd/internal/logic/instance"
)

const sandboxContainerName = "sandbox"

func (a *Adapter) CreatePodCommand(
	ctx context.Context,
	spec instance.PodSpec,
) error {
	_, err := a.clientset.CoreV1().Pods(spec.Namespace).Create(
		ctx,
		buildPod(spec),
		metav1.CreateOptions{},
	)
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}

		return fmt.Errorf("create pod: %w", err)
	}

	return nil
}

func (a *Adapter) GetPodPhaseQuery(
	ctx context.Context,
	namespace,
	name string,
) (string, error) {
	pod, err := a.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return "", fmt.Errorf("get pod: %w", errPodNotFound)
		}

		return "", fmt.Errorf("get pod: %w", err)
	}

	return string(pod.Status.Phase), nil
}

func (a *Adapter) DeletePodCommand(
	ctx context.Context,
	namespace,
	name string,
) error {
	err := a.clientset.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil {
		// Already gone is the desired end state.
		if apierrors.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("delete pod: %w", err)
	}

	return nil
}

func (a *Adapter) PodLogsQuery(
	ctx context.Context,
	namespace,
	name string,
) (string, error) {
	raw, err := a.clientset.CoreV1().
		Pods(namespace).
		GetLogs(name, &corev1.PodLogOptions{}).
		Do(ctx).
		Raw()
	if err != nil {
		if apierrors.IsNotFound(err) {
			return "", fmt.Errorf("get pod logs: %w", errPodNotFound)
		}

		return "", fmt.Errorf("get pod logs: %w", err)
	}

	return string(raw), nil
}

func (a *Adapter) PodUsageQuery(
	ctx context.Context,
	namespace,
	name string,
) (*instance.Usage, error) {
	podMetrics, err := a.metricsClientset.MetricsV1beta1().PodMetricses(namespace).Get(
		ctx,
		name,
		metav1.GetOptions{},
	)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("get pod metrics: %w", errMetricsNotFound)
		}

		return nil, fmt.Errorf("get pod metrics: %w", err)
	}

	cpu := resource.NewQuantity(0, resource.DecimalSI)
	memory := resource.NewQuantity(0, resource.BinarySI)

	for i := range podMetrics.Containers {
		if containerCPU := podMetrics.Containers[i].Usage.Cpu(); containerCPU != nil {
			cpu.Add(*containerCPU)
		}

		if containerMemory := podMetrics.Containers[i].Usage.Memory(); containerMemory != nil {
			memory.Add(*containerMemory)
		}
	}

	return &instance.Usage{
		CPU:    cpu,
		Memory: memory,
	}, nil
}

func (a *Adapter) CreateServiceCommand(
	ctx context.Context,
	spec instance.ServiceSpec,
) error {
	_, err := a.clientset.CoreV1().Services(spec.Namespace).Create(
		ctx,
		buildService(spec),
		metav1.CreateOptions{},
	)
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}

		return fmt.Errorf("create service: %w", err)
	}

	return nil
}

func (a *Adapter) DeleteServiceCommand(
	ctx context.Context,
	namespace,
	name string,
) error {
	err := a.clientset.CoreV1().Services(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("delete service: %w", errServiceNotFound)
		}

		return fmt.Errorf("delete service: %w", err)
	}

	return nil
}

func buildPod(spec instance.PodSpec) *corev1.Pod {
	env := make([]corev1.EnvVar, 0, len(spec.Env))

	names := make([]string, 0, len(spec.Env))
	for name := range spec.Env {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		env = append(env, corev1.EnvVar{Name: name, Value: spec.Env[name]})
	}

	container := corev1.Container{
		Name:  sandboxContainerName,
		Image: spec.Image,
		Env:   env,
		Resources: corev1.ResourceRequirements{
			Requests: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse(instance.PodRequestCPU),
				corev1.ResourceMemory: resource.MustParse(instance.PodRequestMemory),
			},
			Limits: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse(instance.PodLimitCPU),
				corev1.ResourceMemory: resource.MustParse(instance.PodLimitMemory),
			},
		},
	}

	if spec.SSHEnabled {
		container.Ports = []corev1.ContainerPort{
			{
				ContainerPort: 22,
				Protocol:      corev1.ProtocolTCP,
			},
		}
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: spec.Namespace,
			Labels:    spec.Labels,
		},
		Spec: corev1.PodSpec{
			Containers:    []corev1.Container{container},
			RestartPolicy: corev1.RestartPolicyAlways,
		},
	}
}

func buildService(spec instance.ServiceSpec) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: spec.Namespace,
		},
		Spec: corev1.ServiceSpec{
			Type: corev1.ServiceTypeNodePort,
			Selector: map[string]string{
				instance.LabelApp: spec.SelectorApp,
			},
			Ports: []corev1.ServicePort{
				{
					Port:       spec.NodePort,
					TargetPort: intstr.FromInt32(22),
					NodePort:   spec.NodePort,
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}
}
