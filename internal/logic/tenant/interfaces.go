package tenant

import "context"

// Cluster is the port interface for namespace-scoped cluster operations.
// Implementations are provided by adapters in the outbound layer.
type Cluster interface {
	NamespaceExistsQuery(
		ctx context.Context,
		name string,
	) (bool, error)

	CreateNamespaceCommand(
		ctx context.Context,
		name string,
		labels map[string]string,
	) error

	CreateServiceAccountCommand(
		ctx context.Context,
		namespace,
		name string,
	) error

	CreateRoleCommand(
		ctx context.Context,
		namespace,
		name string,
		labels map[string]string,
	) error

	CreateRoleBindingCommand(
		ctx context.Context,
		namespace,
		name,
		roleName,
		serviceAccountName string,
	) error

	CreateResourceQuotaCommand(
		ctx context.Context,
		namespace,
		name string,
		hard QuotaLimits,
	) error

	CreateNetworkPolicyCommand(
		ctx context.Context,
		namespace,
		name string,
	) error

	DeleteNamespaceCommand(
		ctx context.Context,
		name string,
	) error
}
