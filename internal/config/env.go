package config

import "time"

// Env key constants. All orchestrator configuration env vars use SANDBOXD_ prefix;
// duration values support explicit units (e.g. 5m, 40s, 2h).

// Path to kubeconfig file. If unset, KUBECONFIG is used as fallback.
const envKeyKubeConfig = "SANDBOXD_KUBECONFIG"

// Kubernetes API server URL. If unset, KUBERNETES_MASTER is used as fallback.
const envKeyKubeMaster = "SANDBOXD_KUBE_MASTER"

// Log level: debug, info, warn, error.
const envKeyLogLevel = "SANDBOXD_LOG_LEVEL"

// Log format: json or text.
const envKeyLogFormat = "SANDBOXD_LOG_FORMAT"

// Port for the API/health HTTP server.
const envKeyHTTPPort = "SANDBOXD_HTTP_PORT"

// Path to the bbolt file holding instance and connection records.
const envKeyStorePath = "SANDBOXD_STORE_PATH"

// Path to the JSON image-template catalog.
const envKeyCatalogPath = "SANDBOXD_CATALOG_PATH"

// HMAC secret for bearer-token verification. Required.
const envKeyJWTSecret = "SANDBOXD_JWT_SECRET"

// Prefix for per-owner namespaces (e.g. sandbox- produces sandbox-jdoe-42).
const envKeyNamespacePrefix = "SANDBOXD_NAMESPACE_PREFIX"

// Image used when a workload has to be upgraded to an SSH-capable companion.
const envKeySSHImage = "SANDBOXD_SSH_IMAGE"

// NodePort window for exposed SSH services. Base must sit inside the
// cluster's NodePort range; range is the number of ports after base.
const (
	envKeyPortBase  = "SANDBOXD_SSH_PORT_BASE"
	envKeyPortRange = "SANDBOXD_SSH_PORT_RANGE"
)

// Grant lifetime bounds. Units: s, m, h (e.g. 24h).
const (
	envKeyGrantDefaultTTL = "SANDBOXD_GRANT_DEFAULT_TTL"
	envKeyGrantMaxTTL     = "SANDBOXD_GRANT_MAX_TTL"
	envMinGrantTTL        = time.Minute
)

// Maintenance schedule: standard 5-field cron spec driving the periodic
// reconcile-all and expiry sweep. Timezone is IANA (e.g. Europe/Prague).
const (
	envKeyMaintenanceSchedule = "SANDBOXD_MAINTENANCE_SCHEDULE"
	envKeyMaintenanceTZ       = "SANDBOXD_MAINTENANCE_TZ"
)

// Max jitter added to each scheduled maintenance run. Units: s, m, h.
const (
	envKeyMaintenanceJitterMax = "SANDBOXD_MAINTENANCE_JITTER_MAX"
	envMinMaintenanceJitterMax = time.Second
)

// Standard k8s env keys used as fallback when SANDBOXD_* are unset.
const (
	envKeyKubeConfigFallback = "KUBECONFIG"
	envKeyKubeMasterFallback = "KUBERNETES_MASTER"
)
