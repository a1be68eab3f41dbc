package tenant_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/sandboxd/internal/logic/principal"
	"github.com/skillcoder/sandboxd/internal/logic/tenant"
)

var errCluster = errors.New("cluster unreachable")

// fakeCluster counts calls and lets individual operations be failed.
type fakeCluster struct {
	existing map[string]bool

	failNamespace bool
	failQuota     bool
	failPolicy    bool

	namespaceCreates int
	quotaCreates     int
	policyCreates    int
	roleCreates      int
	bindingCreates   int
	accountCreates   int
	deletes          []string
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{existing: map[string]bool{}}
}

func (f *fakeCluster) NamespaceExistsQuery(_ context.Context, name string) (bool, error) {
	return f.existing[name], nil
}

func (f *fakeCluster) CreateNamespaceCommand(_ context.Context, name string, _ map[string]string) error {
	if f.failNamespace {
		return errCluster
	}

	f.namespaceCreates++
	f.existing[name] = true

	return nil
}

func (f *fakeCluster) CreateServiceAccountCommand(_ context.Context, _, _ string) error {
	f.accountCreates++

	return nil
}

func (f *fakeCluster) CreateRoleCommand(_ context.Context, _, _ string, _ map[string]string) error {
	f.roleCreates++

	return nil
}

func (f *fakeCluster) CreateRoleBindingCommand(_ context.Context, _, _, _, _ string) error {
	f.bindingCreates++

	return nil
}

func (f *fakeCluster) CreateResourceQuotaCommand(_ context.Context, _, _ string, _ tenant.QuotaLimits) error {
	if f.failQuota {
		return errCluster
	}

	f.quotaCreates++

	return nil
}

func (f *fakeCluster) CreateNetworkPolicyCommand(_ context.Context, _, _ string) error {
	if f.failPolicy {
		return errCluster
	}

	f.policyCreates++

	return nil
}

func (f *fakeCluster) DeleteNamespaceCommand(_ context.Context, name string) error {
	f.deletes = append(f.deletes, name)
	delete(f.existing, name)

	return nil
}

var _ tenant.Cluster = (*fakeCluster)(nil)

func owner() principal.Owner {
	return principal.Owner{ID: "42", Handle: "JDoe"}
}

func TestGetOrCreate(t *testing.T) {
	t.Parallel()

	logger := slog.Default()

	t.Run("name is prefix plus sanitized handle plus owner id", func(t *testing.T) {
		t.Parallel()

		svc := tenant.New(logger, newFakeCluster(), "sandbox-")
		require.Equal(t, "sandbox-jdoe-42", svc.NamespaceName(owner()))
	})

	t.Run("called twice creates at most one namespace", func(t *testing.T) {
		t.Parallel()

		cluster := newFakeCluster()
		svc := tenant.New(logger, cluster, "sandbox-")

		first, err := svc.GetOrCreate(t.Context(), owner())
		require.NoError(t, err)

		second, err := svc.GetOrCreate(t.Context(), owner())
		require.NoError(t, err)

		require.Equal(t, first, second)
		require.Equal(t, 1, cluster.namespaceCreates)
	})

	t.Run("provisions the full isolation boundary", func(t *testing.T) {
		t.Parallel()

		cluster := newFakeCluster()
		svc := tenant.New(logger, cluster, "sandbox-")

		_, err := svc.GetOrCreate(t.Context(), owner())
		require.NoError(t, err)

		require.Equal(t, 1, cluster.accountCreates)
		require.Equal(t, 1, cluster.roleCreates)
		require.Equal(t, 1, cluster.bindingCreates)
		require.Equal(t, 1, cluster.quotaCreates)
		require.Equal(t, 1, cluster.policyCreates)
	})

	t.Run("quota and policy failures do not abort", func(t *testing.T) {
		t.Parallel()

		cluster := newFakeCluster()
		cluster.failQuota = true
		cluster.failPolicy = true
		svc := tenant.New(logger, cluster, "sandbox-")

		name, err := svc.GetOrCreate(t.Context(), owner())
		require.NoError(t, err)
		require.Equal(t, "sandbox-jdoe-42", name)
		require.Equal(t, 1, cluster.namespaceCreates)
	})

	t.Run("namespace failure is fatal", func(t *testing.T) {
		t.Parallel()

		cluster := newFakeCluster()
		cluster.failNamespace = true
		svc := tenant.New(logger, cluster, "sandbox-")

		_, err := svc.GetOrCreate(t.Context(), owner())
		require.ErrorIs(t, err, tenant.ErrCreateNamespace)
		// No best-effort step runs after the fatal failure.
		require.Zero(t, cluster.quotaCreates)
		require.Zero(t, cluster.accountCreates)
	})
}

func TestDelete(t *testing.T) {
	t.Parallel()

	logger := slog.Default()

	t.Run("cascades tenant namespace", func(t *testing.T) {
		t.Parallel()

		cluster := newFakeCluster()
		svc := tenant.New(logger, cluster, "sandbox-")

		require.NoError(t, svc.Delete(t.Context(), "sandbox-jdoe-42"))
		require.Equal(t, []string{"sandbox-jdoe-42"}, cluster.deletes)
	})

	t.Run("refuses protected namespaces", func(t *testing.T) {
		t.Parallel()

		cluster := newFakeCluster()
		svc := tenant.New(logger, cluster, "sandbox-")

		for _, name := range []string{"default", "kube-system", "kube-public", "kube-node-lease"} {
			err := svc.Delete(t.Context(), name)
			require.ErrorIs(t, err, tenant.ErrProtectedNamespace)
		}

		require.Empty(t, cluster.deletes)
	})
}
