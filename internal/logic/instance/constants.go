package instance

const (
	LabelApp        = "app"
	LabelOwnerID    = "sandbox.k8s.skillcoder.com/owner-id"
	LabelOwner      = "sandbox.k8s.skillcoder.com/owner"
	LabelType       = "sandbox.k8s.skillcoder.com/type"
	LabelSSHEnabled = "sandbox.k8s.skillcoder.com/ssh-enabled"

	TypeSandbox = "sandbox"

	// Env vars read by the sandbox image entrypoint.
	EnvWorkspaceUser = "WORKSPACE_USER"
	EnvSSHEnabled    = "SSH_ENABLED"

	// Fixed per-pod resource shape; the namespace quota bounds the aggregate.
	PodRequestCPU    = "100m"
	PodRequestMemory = "256Mi"
	PodLimitCPU      = "500m"
	PodLimitMemory   = "512Mi"

	// Placeholder returned when a workload has produced no output yet or the
	// stream is unreachable; an empty log is not an error.
	logsPlaceholder = "No output captured yet."
)

// ServiceNameFor derives the SSH service name for an instance.
func ServiceNameFor(instanceName string) string {
	return instanceName + "-ssh"
}
