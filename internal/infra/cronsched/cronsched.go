package cronsched

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	cron "github.com/netresearch/go-cron"
)

var _parser = cron.MustNewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Scheduler computes jittered next occurrences of a cron spec using go-cron.
type Scheduler struct {
	jitterMax time.Duration
}

// New creates a new cron scheduler. jitterMax of 0 disables jitter.
func New(jitterMax time.Duration) *Scheduler {
	return &Scheduler{jitterMax: jitterMax}
}

// NextAfter returns the next cron occurrence strictly after `after`,
// plus a random jitter in [0, jitterMax).
// If tz is non-empty and the spec has no CRON_TZ=/TZ= prefix, it prepends CRON_TZ=<tz>.
// Defaults to UTC when no tz is given.
func (s *Scheduler) NextAfter(
	spec,
	tz string,
	after time.Time,
) (time.Time, error) {
	fullSpec := buildSpec(spec, tz)

	schedule, err := _parser.Parse(fullSpec)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}

	next := schedule.Next(after)
	if s.jitterMax > 0 {
		next = next.Add(rand.N(s.jitterMax))
	}

	return next, nil
}

func buildSpec(spec, tz string) string {
	hasTZPrefix := strings.HasPrefix(spec, "CRON_TZ=") ||
		strings.HasPrefix(spec, "TZ=")

	if tz != "" && !hasTZPrefix {
		return "CRON_TZ=" + tz + " " + spec
	}

	if !hasTZPrefix {
		return "CRON_TZ=UTC " + spec
	}

	return spec
}
