package k8s

import (
	"log/slog"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/skillcoder/sandboxd/internal/logic/access"
	"github.com/skillcoder/sandboxd/internal/logic/instance"
	"github.com/skillcoder/sandboxd/internal/logic/tenant"
)

// Adapter implements the tenant, instance and access cluster ports against
// the Kubernetes API. The rest config is only needed for the exec transport;
// everything else goes through the typed clientsets.
type Adapter struct {
	logger           *slog.Logger
	clientset        kubernetes.Interface
	metricsClientset metricsv.Interface
	restConfig       *rest.Config
}

// New creates a new Kubernetes adapter.
func New(
	logger *slog.Logger,
	clientset kubernetes.Interface,
	metricsClientset metricsv.Interface,
	restConfig *rest.Config,
) *Adapter {
	return &Adapter{
		logger:           logger,
		clientset:        clientset,
		metricsClientset: metricsClientset,
		restConfig:       restConfig,
	}
}

var (
	_ tenant.Cluster   = (*Adapter)(nil)
	_ instance.Cluster = (*Adapter)(nil)
	_ access.Cluster   = (*Adapter)(nil)
)
