package instance

import (
	"context"

	"github.com/skillcoder/sandboxd/internal/logic/principal"
)

// Cluster is the port interface for workload and service operations.
// Implementations are provided by adapters in the outbound layer.
type Cluster interface {
	CreatePodCommand(
		ctx context.Context,
		spec PodSpec,
	) error

	GetPodPhaseQuery(
		ctx context.Context,
		namespace,
		name string,
	) (string, error)

	DeletePodCommand(
		ctx context.Context,
		namespace,
		name string,
	) error

	PodLogsQuery(
		ctx context.Context,
		namespace,
		name string,
	) (string, error)

	PodUsageQuery(
		ctx context.Context,
		namespace,
		name string,
	) (*Usage, error)

	CreateServiceCommand(
		ctx context.Context,
		spec ServiceSpec,
	) error

	DeleteServiceCommand(
		ctx context.Context,
		namespace,
		name string,
	) error
}

// Catalog resolves image templates; an external collaborator.
type Catalog interface {
	ResolveTemplateQuery(
		ctx context.Context,
		templateID string,
	) (*Template, error)
}

// Repository is the port interface for persisted instance records.
type Repository interface {
	SaveInstance(ctx context.Context, inst *Instance) error
	GetInstance(ctx context.Context, name string) (*Instance, error)
	ListInstances(ctx context.Context) ([]Instance, error)
	ListInstancesByOwner(ctx context.Context, ownerID string) ([]Instance, error)
	DeleteInstance(ctx context.Context, name string) error
}

// Tenants is the namespace provisioner dependency.
type Tenants interface {
	NamespaceName(owner principal.Owner) string
	GetOrCreate(ctx context.Context, owner principal.Owner) (string, error)
	Delete(ctx context.Context, name string) error
}

// notFound is a private interface for checking "not found" errors
// without importing the adapter package.
type notFound interface {
	IsNotFound()
}
