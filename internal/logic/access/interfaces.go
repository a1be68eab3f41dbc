package access

import (
	"context"

	"github.com/skillcoder/sandboxd/internal/logic/instance"
)

// Cluster is the port interface for the broker's workload-side effects. Pod
// and service descriptors are shared with the instance manager; the broker
// adds capability probing, annotation patching and remote exec.
type Cluster interface {
	PodHasSSHPortQuery(
		ctx context.Context,
		namespace,
		name string,
	) (bool, error)

	CreatePodCommand(
		ctx context.Context,
		spec instance.PodSpec,
	) error

	SetPodAnnotationCommand(
		ctx context.Context,
		namespace,
		name,
		key,
		value string,
	) error

	ExecPodCommand(
		ctx context.Context,
		namespace,
		name string,
		command []string,
	) error

	CreateServiceCommand(
		ctx context.Context,
		spec instance.ServiceSpec,
	) error

	DeleteServiceCommand(
		ctx context.Context,
		namespace,
		name string,
	) error
}

// Repository is the port interface for persisted grants.
type Repository interface {
	SaveConnection(ctx context.Context, conn *Connection) error
	GetConnection(ctx context.Context, login string) (*Connection, error)
	FindActiveConnection(ctx context.Context, ownerID, instanceName string) (*Connection, error)
	ListConnections(ctx context.Context) ([]Connection, error)
	ListConnectionsByOwner(ctx context.Context, ownerID string) ([]Connection, error)
}

// Instances is the instance manager surface the broker needs: trusted record
// lookup and the workload re-point after a companion upgrade.
type Instances interface {
	Resolve(ctx context.Context, name string) (*instance.Instance, error)
	RepointWorkload(ctx context.Context, name, workloadRef string) error
}

// notFound is a private interface for checking "not found" errors
// without importing the adapter package.
type notFound interface {
	IsNotFound()
}
