package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/skillcoder/sandboxd/internal/adapters/outbound/boltstore"
	"github.com/skillcoder/sandboxd/internal/adapters/outbound/catalog"
	"github.com/skillcoder/sandboxd/internal/adapters/outbound/k8s"
	"github.com/skillcoder/sandboxd/internal/config"
	"github.com/skillcoder/sandboxd/internal/httpserver"
	"github.com/skillcoder/sandboxd/internal/infra/cronsched"
	"github.com/skillcoder/sandboxd/internal/infra/shutdown"
	"github.com/skillcoder/sandboxd/internal/logic/access"
	"github.com/skillcoder/sandboxd/internal/logic/instance"
	"github.com/skillcoder/sandboxd/internal/logic/maintenance"
	"github.com/skillcoder/sandboxd/internal/logic/tenant"
)

type App struct {
	logger          *slog.Logger
	store           *boltstore.Store
	maintenance     *maintenance.Service
	server          *httpserver.Server
	shutdownHandler *shutdown.Handler
}

type signalQuiter struct {
	signals <-chan os.Signal
}

func (q signalQuiter) Quit() <-chan os.Signal {
	return q.signals
}

// New creates a new application instance with all dependencies wired. The
// cluster client handle is built here and injected into the adapter; nothing
// below this layer owns a global client.
func New(logger *slog.Logger, cfg *config.Config, signals <-chan os.Signal) (*App, error) {
	kubeConfig, err := clientcmd.BuildConfigFromFlags(cfg.KubeMaster, cfg.KubeConfig)
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(kubeConfig)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}

	metricsClientset, err := metricsv.NewForConfig(kubeConfig)
	if err != nil {
		return nil, fmt.Errorf("create metrics clientset: %w", err)
	}

	cluster := k8s.New(logger, clientset, metricsClientset, kubeConfig)

	store, err := boltstore.Open(logger, cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	templateCatalog, err := catalog.Load(logger, cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load template catalog: %w", err)
	}

	tenantService := tenant.New(logger, cluster, cfg.NamespacePrefix)

	instanceService := instance.New(
		logger,
		cluster,
		templateCatalog,
		store,
		tenantService,
		cfg.PortBase,
		cfg.PortRange,
	)

	accessService := access.New(
		logger,
		cluster,
		store,
		instanceService,
		cfg.SSHImage,
		cfg.PortBase,
		cfg.PortRange,
		cfg.GrantDefaultTTL,
		cfg.GrantMaxTTL,
	)

	maintenanceService := maintenance.New(
		logger,
		instanceService,
		accessService,
		cronsched.New(cfg.MaintenanceJitterMax),
		cfg.MaintenanceSchedule,
		cfg.MaintenanceTZ,
	)

	server := httpserver.New(
		logger,
		instanceService,
		accessService,
		templateCatalog,
		[]httpserver.Pinger{maintenanceService},
		cfg.JWTSecret,
		cfg.HTTPPort,
	)

	return &App{
		logger:          logger,
		store:           store,
		maintenance:     maintenanceService,
		server:          server,
		shutdownHandler: shutdown.New(logger, signalQuiter{signals: signals}),
	}, nil
}

// Run starts all components and blocks until a termination signal arrives,
// then shuts them down in reverse start order.
func (a *App) Run(originCtx context.Context) error {
	ctx, cancel := context.WithCancel(originCtx)
	defer cancel()

	go a.shutdownHandler.HandleSignals(ctx, cancel)

	if err := a.maintenance.Start(ctx); err != nil {
		return fmt.Errorf("start maintenance: %w", err)
	}

	if err := a.server.Start(ctx); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	a.logger.InfoContext(ctx, "sandboxd started")

	<-ctx.Done()

	return shutdown.GracefulShutdown(originCtx, a.logger, []shutdown.Shutdowner{
		a.store,
		a.maintenance,
		a.server,
	})
}
