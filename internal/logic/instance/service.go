package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/skillcoder/sandboxd/internal/infra/metrics"
	"github.com/skillcoder/sandboxd/internal/logic/principal"
	"github.com/skillcoder/sandboxd/internal/logic/tenant"
)

// Service drives container instances through their lifecycle and keeps the
// persisted status reconciled with cluster-observed truth.
type Service struct {
	logger    *slog.Logger
	cluster   Cluster
	catalog   Catalog
	repo      Repository
	tenants   Tenants
	portBase  int
	portRange int
}

// New creates a new instance manager.
func New(
	logger *slog.Logger,
	cluster Cluster,
	catalog Catalog,
	repo Repository,
	tenants Tenants,
	portBase,
	portRange int,
) *Service {
	return &Service{
		logger:    logger,
		cluster:   cluster,
		catalog:   catalog,
		repo:      repo,
		tenants:   tenants,
		portBase:  portBase,
		portRange: portRange,
	}
}

// Create provisions a sandbox for the caller from an image template.
//
// Workload submission is optimistic: a cluster error is logged and the record
// is still persisted as Creating, so transient connectivity loss to the
// orchestration layer never blocks the workflow. The discrepancy is healed
// (or exposed) by later reconciliation.
func (s *Service) Create(
	ctx context.Context,
	p principal.Principal,
	templateID string,
) (*Instance, error) {
	logger := s.logger.With("owner", p.Owner.Handle, "instance", "Create")

	template, err := s.catalog.ResolveTemplateQuery(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrResolveTemplate, templateID, err)
	}

	namespace, err := s.tenants.GetOrCreate(ctx, p.Owner)
	if err != nil {
		return nil, fmt.Errorf("ensure tenant namespace: %w", err)
	}

	// Millisecond suffix keeps rapid double-submission by the same owner from
	// colliding. Not a mutex: two near-simultaneous creates produce two
	// distinct instances, which is accepted.
	name := fmt.Sprintf("%s-%d", tenant.Sanitize(p.Owner.Handle), time.Now().UnixMilli())

	inst := &Instance{
		Name:        name,
		OwnerID:     p.Owner.ID,
		OwnerHandle: p.Owner.Handle,
		TemplateID:  template.ID,
		Namespace:   namespace,
		WorkloadRef: name,
		ServicePort: NodePortFor(name, s.portBase, s.portRange),
		Status:      StatusCreating,
		CreatedAt:   time.Now(),
	}

	spec := PodSpec{
		Namespace: namespace,
		Name:      name,
		Image:     template.BaseImage,
		Labels: map[string]string{
			LabelApp:        name,
			LabelOwnerID:    tenant.Sanitize(p.Owner.ID),
			LabelOwner:      tenant.Sanitize(p.Owner.Handle),
			LabelType:       TypeSandbox,
			LabelSSHEnabled: fmt.Sprintf("%t", template.SSHCapable),
		},
		Env: map[string]string{
			EnvWorkspaceUser: p.Owner.Handle,
			EnvSSHEnabled:    fmt.Sprintf("%t", template.SSHCapable),
		},
		SSHEnabled: template.SSHCapable,
	}

	if err := s.cluster.CreatePodCommand(ctx, spec); err != nil {
		logger.WarnContext(ctx, "workload submission failed, leaving instance in Creating",
			"name", name,
			"reason", err,
		)
		metrics.RecordWorkloadSubmitFailure()
	}

	if err := s.repo.SaveInstance(ctx, inst); err != nil {
		return nil, fmt.Errorf("persist instance %s: %w", name, err)
	}

	if err := s.cluster.CreateServiceCommand(ctx, ServiceSpec{
		Namespace:   namespace,
		Name:        ServiceNameFor(name),
		SelectorApp: name,
		NodePort:    inst.ServicePort,
	}); err != nil {
		logger.WarnContext(ctx, "ssh service creation failed",
			"name", name,
			"port", inst.ServicePort,
			"reason", err,
		)
	}

	metrics.RecordInstanceCreated()
	logger.InfoContext(ctx, "instance created",
		"name", name,
		"template", template.ID,
		"namespace", namespace,
	)

	if _, err := s.Reconcile(ctx, inst); err != nil {
		logger.WarnContext(ctx, "initial reconciliation failed", "name", name, "reason", err)
	}

	return inst, nil
}

// Reconcile folds the cluster-observed workload phase into the persisted
// record. It is idempotent: an unchanged phase produces no write.
//
// A confirmed NotFound marks the instance Stopped; any other query error
// leaves the record untouched so an unreachable cluster is never mistaken
// for a terminated workload.
func (s *Service) Reconcile(ctx context.Context, inst *Instance) (bool, error) {
	phase, err := s.cluster.GetPodPhaseQuery(ctx, inst.Namespace, inst.WorkloadRef)
	if err != nil {
		var target notFound
		if errors.As(err, &target) {
			if inst.Status.terminal() {
				return false, nil
			}

			inst.Status = StatusStopped
			if err := s.repo.SaveInstance(ctx, inst); err != nil {
				return false, fmt.Errorf("persist stopped instance %s: %w", inst.Name, err)
			}

			metrics.RecordReconcileUpdate()

			return true, nil
		}

		metrics.RecordReconcileError()

		return false, fmt.Errorf("query workload phase for %s: %w", inst.Name, err)
	}

	if Status(phase) == inst.Status {
		return false, nil
	}

	inst.Status = Status(phase)
	if err := s.repo.SaveInstance(ctx, inst); err != nil {
		return false, fmt.Errorf("persist instance %s: %w", inst.Name, err)
	}

	metrics.RecordReconcileUpdate()

	return true, nil
}

// ReconcileAll refreshes every persisted instance. Query failures are logged
// and skipped so one unreachable workload cannot stall the batch.
func (s *Service) ReconcileAll(ctx context.Context) (ReconcileSummary, error) {
	logger := s.logger.With("instance", "ReconcileAll")

	instances, err := s.repo.ListInstances(ctx)
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("list instances: %w", err)
	}

	summary := ReconcileSummary{Total: len(instances)}

	for i := range instances {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "context done, stopping batch reconciliation")

			return summary, nil
		default:
		}

		updated, err := s.Reconcile(ctx, &instances[i])
		if err != nil {
			logger.ErrorContext(ctx, "reconcile error",
				"name", instances[i].Name,
				"reason", err,
			)

			continue
		}

		if updated {
			summary.Updated++
		}
	}

	logger.InfoContext(ctx, "batch reconciliation finished",
		"total", summary.Total,
		"updated", summary.Updated,
	)

	return summary, nil
}

// Resolve fetches an instance record without an authorization check; it is
// for trusted internal callers such as the access broker.
func (s *Service) Resolve(ctx context.Context, name string) (*Instance, error) {
	inst, err := s.repo.GetInstance(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", name, err)
	}

	return inst, nil
}

// RepointWorkload updates the record's backing workload reference after an
// SSH companion upgrade.
func (s *Service) RepointWorkload(ctx context.Context, name, workloadRef string) error {
	inst, err := s.repo.GetInstance(ctx, name)
	if err != nil {
		return fmt.Errorf("get instance %s: %w", name, err)
	}

	inst.WorkloadRef = workloadRef
	if err := s.repo.SaveInstance(ctx, inst); err != nil {
		return fmt.Errorf("persist instance %s: %w", name, err)
	}

	return nil
}

// List returns the caller's instances; elevated roles see everything.
func (s *Service) List(ctx context.Context, p principal.Principal) ([]Instance, error) {
	if p.Role.Can(principal.CapCrossOwnerAccess) {
		instances, err := s.repo.ListInstances(ctx)
		if err != nil {
			return nil, fmt.Errorf("list instances: %w", err)
		}

		return instances, nil
	}

	instances, err := s.repo.ListInstancesByOwner(ctx, p.Owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list instances by owner: %w", err)
	}

	return instances, nil
}

// Stop removes the backing workload but keeps the record, marked Stopped.
// Cluster teardown failures are logged, not fatal.
func (s *Service) Stop(ctx context.Context, p principal.Principal, name string) error {
	inst, err := s.authorize(ctx, p, name)
	if err != nil {
		return err
	}

	s.teardownWorkload(ctx, inst)

	inst.Status = StatusStopped
	if err := s.repo.SaveInstance(ctx, inst); err != nil {
		return fmt.Errorf("persist stopped instance %s: %w", name, err)
	}

	s.logger.InfoContext(ctx, "instance stopped", "name", name, "requester", p.Owner.Handle)

	return nil
}

// Delete removes the workload and the persisted record. The record deletion
// must complete even when cluster cleanup partially fails: an orphaned
// cluster resource is accepted and caught by reconciliation or audit, an
// orphaned record is not.
func (s *Service) Delete(ctx context.Context, p principal.Principal, name string) error {
	inst, err := s.authorize(ctx, p, name)
	if err != nil {
		return err
	}

	s.teardownWorkload(ctx, inst)

	if err := s.repo.DeleteInstance(ctx, name); err != nil {
		return fmt.Errorf("delete instance record %s: %w", name, err)
	}

	s.logger.InfoContext(ctx, "instance deleted", "name", name, "requester", p.Owner.Handle)

	return nil
}

// Logs fetches the workload's captured output. An empty or unreachable
// stream yields a placeholder: a container can legitimately have produced
// nothing yet.
func (s *Service) Logs(ctx context.Context, p principal.Principal, name string) (string, error) {
	inst, err := s.authorize(ctx, p, name)
	if err != nil {
		return "", err
	}

	logs, err := s.cluster.PodLogsQuery(ctx, inst.Namespace, inst.WorkloadRef)
	if err != nil {
		s.logger.WarnContext(ctx, "log fetch failed", "name", name, "reason", err)

		return logsPlaceholder, nil
	}

	if strings.TrimSpace(logs) == "" {
		return logsPlaceholder, nil
	}

	return logs, nil
}

// Usage returns the workload's current CPU and memory consumption from the
// metrics API.
func (s *Service) Usage(ctx context.Context, p principal.Principal, name string) (*Usage, error) {
	inst, err := s.authorize(ctx, p, name)
	if err != nil {
		return nil, err
	}

	usage, err := s.cluster.PodUsageQuery(ctx, inst.Namespace, inst.WorkloadRef)
	if err != nil {
		var target notFound
		if errors.As(err, &target) {
			return nil, fmt.Errorf("%w: %s", ErrUsageNotReady, name)
		}

		return nil, fmt.Errorf("query usage for %s: %w", name, err)
	}

	return usage, nil
}

// DeleteOwner cascades all of an owner's instances and then the namespace.
// Grants must already have been revoked by the access broker; callers own
// that ordering.
func (s *Service) DeleteOwner(ctx context.Context, owner principal.Owner) error {
	logger := s.logger.With("owner", owner.Handle, "instance", "DeleteOwner")

	instances, err := s.repo.ListInstancesByOwner(ctx, owner.ID)
	if err != nil {
		return fmt.Errorf("list instances by owner: %w", err)
	}

	for i := range instances {
		s.teardownWorkload(ctx, &instances[i])

		if err := s.repo.DeleteInstance(ctx, instances[i].Name); err != nil {
			return fmt.Errorf("delete instance record %s: %w", instances[i].Name, err)
		}
	}

	if err := s.tenants.Delete(ctx, s.tenants.NamespaceName(owner)); err != nil {
		logger.WarnContext(ctx, "namespace teardown failed", "reason", err)
	}

	logger.InfoContext(ctx, "owner resources deleted", "instances", len(instances))

	return nil
}

func (s *Service) authorize(
	ctx context.Context,
	p principal.Principal,
	name string,
) (*Instance, error) {
	inst, err := s.repo.GetInstance(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", name, err)
	}

	if !p.CanAccessOwner(inst.OwnerID) {
		return nil, fmt.Errorf("instance %s: %w", name, errAccessDenied)
	}

	return inst, nil
}

func (s *Service) teardownWorkload(ctx context.Context, inst *Instance) {
	if err := s.cluster.DeletePodCommand(ctx, inst.Namespace, inst.WorkloadRef); err != nil {
		s.logger.WarnContext(ctx, "workload teardown failed",
			"name", inst.Name,
			"workload", inst.WorkloadRef,
			"reason", err,
		)
	}

	if err := s.cluster.DeleteServiceCommand(ctx, inst.Namespace, ServiceNameFor(inst.Name)); err != nil {
		s.logger.WarnContext(ctx, "service teardown failed",
			"name", inst.Name,
			"reason", err,
		)
	}
}
