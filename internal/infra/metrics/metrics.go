package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var provisionStepFailuresTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "sandboxd_provision_step_failures_total",
		Help: "Total number of non-fatal tenant provisioning step failures " +
			"(quota, network policy, RBAC); the tenant still comes up without them.",
	},
	[]string{"step"},
)

var instancesCreatedTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "sandboxd_instances_created_total",
		Help: "Total number of container instances created.",
	},
)

var workloadSubmitFailuresTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "sandboxd_workload_submit_failures_total",
		Help: "Total number of workload submissions that failed and were left " +
			"in Creating for later reconciliation.",
	},
)

var reconcileUpdatesTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "sandboxd_reconcile_updates_total",
		Help: "Total number of instance records whose status changed during reconciliation.",
	},
)

var reconcileErrorsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "sandboxd_reconcile_errors_total",
		Help: "Total number of reconciliation passes that could not query the cluster.",
	},
)

var grantsIssuedTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "sandboxd_grants_issued_total",
		Help: "Total number of SSH access grants minted (idempotent re-reads excluded).",
	},
)

var authFailuresTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "sandboxd_auth_failures_total",
		Help: "Total number of failed SSH credential authentications.",
	},
)

var grantsExpiredTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "sandboxd_grants_expired_total",
		Help: "Total number of grants transitioned to Expired by sweep or lazy check.",
	},
)

var accountInjectionFailuresTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "sandboxd_account_injection_failures_total",
		Help: "Total number of advisory in-container account injections that failed; " +
			"the account materializes on next restart via the annotation convention.",
	},
)

// RecordProvisionStepFailure increments the counter for a failed non-fatal provisioning step.
func RecordProvisionStepFailure(step string) {
	provisionStepFailuresTotal.WithLabelValues(step).Inc()
}

func RecordInstanceCreated() {
	instancesCreatedTotal.Inc()
}

func RecordWorkloadSubmitFailure() {
	workloadSubmitFailuresTotal.Inc()
}

func RecordReconcileUpdate() {
	reconcileUpdatesTotal.Inc()
}

func RecordReconcileError() {
	reconcileErrorsTotal.Inc()
}

func RecordGrantIssued() {
	grantsIssuedTotal.Inc()
}

func RecordAuthFailure() {
	authFailuresTotal.Inc()
}

func RecordGrantExpired() {
	grantsExpiredTotal.Inc()
}

func RecordAccountInjectionFailure() {
	accountInjectionFailuresTotal.Inc()
}
