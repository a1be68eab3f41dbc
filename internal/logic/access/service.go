package access

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/skillcoder/sandboxd/internal/infra/metrics"
	"github.com/skillcoder/sandboxd/internal/logic/instance"
	"github.com/skillcoder/sandboxd/internal/logic/principal"
	"github.com/skillcoder/sandboxd/internal/logic/tenant"
)

// Service brokers expiring SSH access grants: credential issuance, the
// authentication predicate consulted by the inbound shell listener, explicit
// revocation and batch expiry.
type Service struct {
	logger     *slog.Logger
	cluster    Cluster
	repo       Repository
	instances  Instances
	sshImage   string
	portBase   int
	portRange  int
	defaultTTL time.Duration
	maxTTL     time.Duration
}

// New creates a new access broker.
func New(
	logger *slog.Logger,
	cluster Cluster,
	repo Repository,
	instances Instances,
	sshImage string,
	portBase,
	portRange int,
	defaultTTL,
	maxTTL time.Duration,
) *Service {
	return &Service{
		logger:     logger,
		cluster:    cluster,
		repo:       repo,
		instances:  instances,
		sshImage:   sshImage,
		portBase:   portBase,
		portRange:  portRange,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
	}
}

// Issue grants the caller SSH access to an instance. Issuance is idempotent:
// an unexpired Active grant for the (owner, instance) pair is returned
// verbatim, a read rather than a re-mint, so repeated UI refreshes cause no
// credential churn.
//
// A zero ttl means the configured default; anything above the configured
// maximum is clamped.
func (s *Service) Issue(
	ctx context.Context,
	p principal.Principal,
	instanceName string,
	ttl time.Duration,
) (*Connection, error) {
	logger := s.logger.With("owner", p.Owner.Handle, "access", "Issue")

	inst, err := s.instances.Resolve(ctx, instanceName)
	if err != nil {
		return nil, fmt.Errorf("resolve instance %s: %w", instanceName, err)
	}

	if !p.CanAccessOwner(inst.OwnerID) {
		return nil, fmt.Errorf("instance %s: %w", instanceName, errAccessDenied)
	}

	existing, err := s.repo.FindActiveConnection(ctx, p.Owner.ID, inst.Name)
	if err != nil {
		var target notFound
		if !errors.As(err, &target) {
			return nil, fmt.Errorf("look up active grant: %w", err)
		}
	} else if time.Now().Before(existing.ExpiresAt) {
		logger.InfoContext(ctx, "returning existing grant",
			"instance", inst.Name,
			"login", existing.Login,
		)

		return existing, nil
	} else if err := s.expire(ctx, existing); err != nil {
		return nil, err
	}

	workloadRef, err := s.ensureSSHWorkload(ctx, inst)
	if err != nil {
		return nil, err
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	// Microsecond suffix keeps logins from back-to-back issuances by the same
	// owner distinct; the login is also a valid Unix account name.
	now := time.Now()
	conn := &Connection{
		Login:        fmt.Sprintf("%s-%d", tenant.Sanitize(p.Owner.Handle), now.UnixMicro()),
		OwnerID:      p.Owner.ID,
		OwnerHandle:  p.Owner.Handle,
		InstanceName: inst.Name,
		Secret:       secret,
		Port:         int32(s.portBase + rand.IntN(s.portRange)),
		Status:       StatusActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.clampTTL(ttl)),
	}

	s.injectAccount(ctx, inst.Namespace, workloadRef, conn)
	s.refreshService(ctx, inst, workloadRef, conn.Port)

	if err := s.repo.SaveConnection(ctx, conn); err != nil {
		return nil, fmt.Errorf("persist grant %s: %w", conn.Login, err)
	}

	metrics.RecordGrantIssued()
	logger.InfoContext(ctx, "grant issued",
		"instance", inst.Name,
		"login", conn.Login,
		"port", conn.Port,
		"expires_at", conn.ExpiresAt,
	)

	return conn, nil
}

// Authenticate is the trust boundary for the inbound shell listener: it
// succeeds only for an Active grant whose secret matches exactly and whose
// expiry has not passed. The expiry check is lazy, so a grant past its
// expires-at fails here even when no sweep has run yet.
func (s *Service) Authenticate(ctx context.Context, login, secret string) (bool, error) {
	conn, err := s.repo.GetConnection(ctx, login)
	if err != nil {
		var target notFound
		if errors.As(err, &target) {
			metrics.RecordAuthFailure()

			return false, nil
		}

		return false, fmt.Errorf("look up grant %s: %w", login, err)
	}

	if conn.Status != StatusActive {
		metrics.RecordAuthFailure()

		return false, nil
	}

	if !time.Now().Before(conn.ExpiresAt) {
		if err := s.expire(ctx, conn); err != nil {
			return false, err
		}

		metrics.RecordAuthFailure()

		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(conn.Secret), []byte(secret)) != 1 {
		metrics.RecordAuthFailure()

		return false, nil
	}

	conn.LastAccessed = time.Now()
	if err := s.repo.SaveConnection(ctx, conn); err != nil {
		return false, fmt.Errorf("persist grant %s: %w", login, err)
	}

	return true, nil
}

// Revoke marks a grant Inactive and tears down its network exposure.
// Repeated calls are no-ops.
func (s *Service) Revoke(ctx context.Context, p principal.Principal, login string) error {
	conn, err := s.repo.GetConnection(ctx, login)
	if err != nil {
		return fmt.Errorf("look up grant %s: %w", login, err)
	}

	if !p.CanAccessOwner(conn.OwnerID) {
		return fmt.Errorf("grant %s: %w", login, errAccessDenied)
	}

	if conn.Status != StatusActive {
		return nil
	}

	conn.Status = StatusInactive
	if err := s.repo.SaveConnection(ctx, conn); err != nil {
		return fmt.Errorf("persist grant %s: %w", login, err)
	}

	s.teardownExposure(ctx, conn)
	s.logger.InfoContext(ctx, "grant revoked", "login", login, "requester", p.Owner.Handle)

	return nil
}

// SweepExpired is the batch analogue of the lazy check in Authenticate: every
// Active grant past its expiry transitions to Expired and loses its network
// exposure. Returns the number of grants swept.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	logger := s.logger.With("access", "SweepExpired")

	conns, err := s.repo.ListConnections(ctx)
	if err != nil {
		return 0, fmt.Errorf("list grants: %w", err)
	}

	now := time.Now()
	swept := 0

	for i := range conns {
		if conns[i].Status != StatusActive || now.Before(conns[i].ExpiresAt) {
			continue
		}

		if err := s.expire(ctx, &conns[i]); err != nil {
			logger.ErrorContext(ctx, "expiry failed", "login", conns[i].Login, "reason", err)

			continue
		}

		swept++
	}

	logger.InfoContext(ctx, "expiry sweep finished", "swept", swept, "total", len(conns))

	return swept, nil
}

// RevokeAllForOwner deactivates every grant of an owner. Used by the owner
// cascade, which must revoke access before the namespace teardown removes the
// services out from under the grants.
func (s *Service) RevokeAllForOwner(ctx context.Context, owner principal.Owner) error {
	conns, err := s.repo.ListConnectionsByOwner(ctx, owner.ID)
	if err != nil {
		return fmt.Errorf("list grants by owner: %w", err)
	}

	for i := range conns {
		if conns[i].Status != StatusActive {
			continue
		}

		conns[i].Status = StatusInactive
		if err := s.repo.SaveConnection(ctx, &conns[i]); err != nil {
			return fmt.Errorf("persist grant %s: %w", conns[i].Login, err)
		}

		s.teardownExposure(ctx, &conns[i])
	}

	return nil
}

// List returns the caller's grants; elevated roles see everything.
func (s *Service) List(ctx context.Context, p principal.Principal) ([]Connection, error) {
	if p.Role.Can(principal.CapCrossOwnerAccess) {
		conns, err := s.repo.ListConnections(ctx)
		if err != nil {
			return nil, fmt.Errorf("list grants: %w", err)
		}

		return conns, nil
	}

	conns, err := s.repo.ListConnectionsByOwner(ctx, p.Owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list grants by owner: %w", err)
	}

	return conns, nil
}

// ensureSSHWorkload verifies the instance's backing workload exposes port 22.
// When the image lacks it entirely, a companion SSH-enabled pod is minted and
// the record re-pointed at it. A one-time upgrade path, not a loop.
func (s *Service) ensureSSHWorkload(ctx context.Context, inst *instance.Instance) (string, error) {
	capable, err := s.cluster.PodHasSSHPortQuery(ctx, inst.Namespace, inst.WorkloadRef)
	if err != nil {
		var target notFound
		if errors.As(err, &target) {
			return "", fmt.Errorf("%w: %s", ErrWorkloadGone, inst.WorkloadRef)
		}

		return "", fmt.Errorf("probe workload %s: %w", inst.WorkloadRef, err)
	}

	if capable {
		return inst.WorkloadRef, nil
	}

	companion := inst.WorkloadRef + companionSuffix
	spec := instance.PodSpec{
		Namespace: inst.Namespace,
		Name:      companion,
		Image:     s.sshImage,
		Labels: map[string]string{
			instance.LabelApp:        companion,
			instance.LabelOwnerID:    tenant.Sanitize(inst.OwnerID),
			instance.LabelOwner:      tenant.Sanitize(inst.OwnerHandle),
			instance.LabelType:       instance.TypeSandbox,
			instance.LabelSSHEnabled: "true",
		},
		Env: map[string]string{
			instance.EnvWorkspaceUser: inst.OwnerHandle,
			instance.EnvSSHEnabled:    "true",
		},
		SSHEnabled: true,
	}

	if err := s.cluster.CreatePodCommand(ctx, spec); err != nil {
		return "", fmt.Errorf("create ssh companion %s: %w", companion, err)
	}

	if err := s.instances.RepointWorkload(ctx, inst.Name, companion); err != nil {
		return "", fmt.Errorf("repoint instance %s: %w", inst.Name, err)
	}

	inst.WorkloadRef = companion
	s.logger.InfoContext(ctx, "ssh companion created",
		"instance", inst.Name,
		"workload", companion,
	)

	return companion, nil
}

// injectAccount provisions the account inside the running workload: an
// annotation carries the credentials for the restart-time convention, and a
// remote exec creates the account live. Both are advisory; their failure is
// logged and issuance still succeeds.
func (s *Service) injectAccount(ctx context.Context, namespace, workloadRef string, conn *Connection) {
	value := conn.Login + ":" + conn.Secret
	if err := s.cluster.SetPodAnnotationCommand(
		ctx, namespace, workloadRef, AnnotationSSHUsers, value,
	); err != nil {
		s.logger.WarnContext(ctx, "credential annotation failed",
			"workload", workloadRef,
			"reason", err,
		)
	}

	if err := s.cluster.ExecPodCommand(
		ctx, namespace, workloadRef, accountSetupCommand(conn.Login, conn.Secret),
	); err != nil {
		metrics.RecordAccountInjectionFailure()
		s.logger.WarnContext(ctx, "live account injection failed, deferring to restart convention",
			"workload", workloadRef,
			"login", conn.Login,
			"reason", err,
		)
	}
}

// refreshService re-creates the NodePort service mapping the grant's port to
// container port 22. Delete-then-create keeps the selector aligned after a
// companion upgrade; exposure failures are logged, not fatal.
func (s *Service) refreshService(
	ctx context.Context,
	inst *instance.Instance,
	workloadRef string,
	port int32,
) {
	name := instance.ServiceNameFor(inst.Name)

	if err := s.cluster.DeleteServiceCommand(ctx, inst.Namespace, name); err != nil {
		s.logger.DebugContext(ctx, "stale service delete failed",
			"service", name,
			"reason", err,
		)
	}

	if err := s.cluster.CreateServiceCommand(ctx, instance.ServiceSpec{
		Namespace:   inst.Namespace,
		Name:        name,
		SelectorApp: workloadRef,
		NodePort:    port,
	}); err != nil {
		s.logger.WarnContext(ctx, "ssh service exposure failed",
			"service", name,
			"port", port,
			"reason", err,
		)
	}
}

func (s *Service) expire(ctx context.Context, conn *Connection) error {
	conn.Status = StatusExpired
	if err := s.repo.SaveConnection(ctx, conn); err != nil {
		return fmt.Errorf("persist expired grant %s: %w", conn.Login, err)
	}

	s.teardownExposure(ctx, conn)
	metrics.RecordGrantExpired()

	return nil
}

func (s *Service) teardownExposure(ctx context.Context, conn *Connection) {
	inst, err := s.instances.Resolve(ctx, conn.InstanceName)
	if err != nil {
		s.logger.WarnContext(ctx, "exposure teardown skipped, instance unresolved",
			"login", conn.Login,
			"instance", conn.InstanceName,
			"reason", err,
		)

		return
	}

	name := instance.ServiceNameFor(inst.Name)
	if err := s.cluster.DeleteServiceCommand(ctx, inst.Namespace, name); err != nil {
		s.logger.WarnContext(ctx, "exposure teardown failed",
			"login", conn.Login,
			"service", name,
			"reason", err,
		)
	}
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}

	if ttl > s.maxTTL {
		return s.maxTTL
	}

	return ttl
}
