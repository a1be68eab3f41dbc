package maintenance

import (
	"context"
	"time"

	"github.com/skillcoder/sandboxd/internal/logic/instance"
)

// Instances is the batch-reconciliation surface of the instance manager.
type Instances interface {
	ReconcileAll(ctx context.Context) (instance.ReconcileSummary, error)
}

// Grants is the expiry-sweep surface of the access broker.
type Grants interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Schedule computes the next jittered occurrence of the maintenance cron spec.
type Schedule interface {
	NextAfter(spec, tz string, after time.Time) (time.Time, error)
}
