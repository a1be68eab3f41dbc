package httpserver

import (
	"context"
	"time"

	"github.com/skillcoder/sandboxd/internal/logic/access"
	"github.com/skillcoder/sandboxd/internal/logic/instance"
	"github.com/skillcoder/sandboxd/internal/logic/principal"
)

// instances is the instance-manager surface the API exposes.
type instances interface {
	Create(ctx context.Context, p principal.Principal, templateID string) (*instance.Instance, error)
	List(ctx context.Context, p principal.Principal) ([]instance.Instance, error)
	Stop(ctx context.Context, p principal.Principal, name string) error
	Delete(ctx context.Context, p principal.Principal, name string) error
	Logs(ctx context.Context, p principal.Principal, name string) (string, error)
	Usage(ctx context.Context, p principal.Principal, name string) (*instance.Usage, error)
	ReconcileAll(ctx context.Context) (instance.ReconcileSummary, error)
	DeleteOwner(ctx context.Context, owner principal.Owner) error
}

// grants is the access-broker surface the API exposes.
type grants interface {
	Issue(
		ctx context.Context,
		p principal.Principal,
		instanceName string,
		ttl time.Duration,
	) (*access.Connection, error)
	Authenticate(ctx context.Context, login, secret string) (bool, error)
	Revoke(ctx context.Context, p principal.Principal, login string) error
	SweepExpired(ctx context.Context) (int, error)
	RevokeAllForOwner(ctx context.Context, owner principal.Owner) error
	List(ctx context.Context, p principal.Principal) ([]access.Connection, error)
}

// templates is the catalog surface the API exposes.
type templates interface {
	ListTemplatesQuery(ctx context.Context) []instance.Template
}

// Pinger is a component the readiness endpoint consults.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}
