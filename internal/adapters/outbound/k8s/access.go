package k8s

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
)

func (a *Adapter) PodHasSSHPortQuery(
	ctx context.Context,
	namespace,
	name string,
) (bool, error) {
	pod, err := a.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, fmt.Errorf("get pod: %w", errPodNotFound)
		}

		return false, fmt.Errorf("get pod: %w", err)
	}

	for i := range pod.Spec.Containers {
		for _, port := range pod.Spec.Containers[i].Ports {
			if port.ContainerPort == 22 {
				return true, nil
			}
		}
	}

	return false, nil
}

func (a *Adapter) SetPodAnnotationCommand(
	ctx context.Context,
	namespace,
	name,
	key,
	value string,
) error {
	annotations := map[string]any{key: value}
	if value == "" {
		annotations[key] = nil
	}

	patch := map[string]any{
		"metadata": map[string]any{
			"annotations": annotations,
		},
	}

	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal annotation patch: %w", err)
	}

	_, err = a.clientset.CoreV1().Pods(namespace).Patch(
		ctx,
		name,
		types.MergePatchType,
		patchBytes,
		metav1.PatchOptions{},
	)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("patch pod annotation: %w", errPodNotFound)
		}

		return fmt.Errorf("patch pod annotation: %w", err)
	}

	return nil
}

func (a *Adapter) ExecPodCommand(
	ctx context.Context,
	namespace,
	name string,
	command []string,
) error {
	if a.restConfig == nil {
		return fmt.Errorf("exec transport not configured")
	}

	req := a.clientset.CoreV1().RESTClient().
		Post().
		Resource("pods").
		Namespace(namespace).
		Name(name).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: sandboxContainerName,
			Command:   command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(a.restConfig, "POST", req.URL())
	if err != nil {
		return fmt.Errorf("build exec transport: %w", err)
	}

	var stdout, stderr bytes.Buffer

	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return fmt.Errorf("exec in pod: %w (stderr: %s)", err, stderr.String())
	}

	a.logger.DebugContext(ctx, "pod exec completed",
		"pod", name,
		"namespace", namespace,
		"stdout_bytes", stdout.Len(),
	)

	return nil
}
