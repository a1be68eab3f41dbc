package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skillcoder/sandboxd/internal/infra/metrics"
	"github.com/skillcoder/sandboxd/internal/logic/principal"
	"github.com/skillcoder/sandboxd/internal/logic/provision"
)

// Service provisions and destroys the per-owner isolation boundary:
// namespace, scoped RBAC, resource quota and network policy.
type Service struct {
	logger  *slog.Logger
	cluster Cluster
	prefix  string
	quota   QuotaLimits
}

// New creates a new tenant provisioner.
func New(
	logger *slog.Logger,
	cluster Cluster,
	prefix string,
) *Service {
	return &Service{
		logger:  logger,
		cluster: cluster,
		prefix:  prefix,
		quota:   DefaultQuota(),
	}
}

// NamespaceName derives the owner's namespace name. The owner id suffix keeps
// two distinct handles that sanitize to the same string from colliding.
func (s *Service) NamespaceName(owner principal.Owner) string {
	return s.prefix + Sanitize(owner.Handle) + "-" + Sanitize(owner.ID)
}

// GetOrCreate returns the owner's namespace, creating the full isolation
// boundary on first use. Existence is checked against the cluster directly;
// local records can diverge from cluster truth.
//
// Only the namespace creation itself is fatal. RBAC, quota and network policy
// are best-effort: a tenant without a quota is safer than no tenant at all,
// and the gaps are visible in logs and metrics.
func (s *Service) GetOrCreate(ctx context.Context, owner principal.Owner) (string, error) {
	logger := s.logger.With("owner", owner.Handle, "tenant", "GetOrCreate")

	name := s.NamespaceName(owner)

	exists, err := s.cluster.NamespaceExistsQuery(ctx, name)
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrLookupNamespace, name, err)
	}

	if exists {
		logger.DebugContext(ctx, "namespace already provisioned", "namespace", name)

		return name, nil
	}

	labels := map[string]string{
		LabelOwnerID:   Sanitize(owner.ID),
		LabelOwner:     Sanitize(owner.Handle),
		LabelManagedBy: ManagedByValue,
	}

	outcomes, err := provision.Apply(ctx, logger, []provision.Step{
		{
			Name:  "namespace",
			Class: provision.ClassFatal,
			Run: func(ctx context.Context) error {
				return s.cluster.CreateNamespaceCommand(ctx, name, labels)
			},
		},
		{
			Name:  "service-account",
			Class: provision.ClassBestEffort,
			Run: func(ctx context.Context) error {
				return s.cluster.CreateServiceAccountCommand(ctx, name, serviceAccountName)
			},
		},
		{
			Name:  "role",
			Class: provision.ClassBestEffort,
			Run: func(ctx context.Context) error {
				return s.cluster.CreateRoleCommand(ctx, name, roleName, labels)
			},
		},
		{
			Name:  "role-binding",
			Class: provision.ClassBestEffort,
			Run: func(ctx context.Context) error {
				return s.cluster.CreateRoleBindingCommand(ctx, name, roleBindingName, roleName, serviceAccountName)
			},
		},
		{
			Name:  "quota",
			Class: provision.ClassBestEffort,
			Run: func(ctx context.Context) error {
				return s.cluster.CreateResourceQuotaCommand(ctx, name, resourceQuotaName, s.quota)
			},
		},
		{
			Name:  "network-policy",
			Class: provision.ClassBestEffort,
			Run: func(ctx context.Context) error {
				return s.cluster.CreateNetworkPolicyCommand(ctx, name, networkPolicyName)
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w for owner %s: %w", ErrCreateNamespace, owner.Handle, err)
	}

	for _, failed := range provision.Failed(outcomes) {
		metrics.RecordProvisionStepFailure(failed.Name)
	}

	logger.InfoContext(ctx, "namespace provisioned",
		"namespace", name,
		"failedSteps", len(provision.Failed(outcomes)),
	)

	return name, nil
}

// Delete cascades the namespace and everything scoped to it. Shared
// namespaces are refused unconditionally.
func (s *Service) Delete(ctx context.Context, name string) error {
	if protectedNamespaces[name] {
		return fmt.Errorf("%w: %s", ErrProtectedNamespace, name)
	}

	if err := s.cluster.DeleteNamespaceCommand(ctx, name); err != nil {
		return fmt.Errorf("delete namespace %s: %w", name, err)
	}

	s.logger.InfoContext(ctx, "namespace deleted", "namespace", name)

	return nil
}
