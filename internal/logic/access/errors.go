package access

import "errors"

// ErrWorkloadGone means the grant's target workload is confirmed absent, so
// there is nothing to attach SSH access to.
var ErrWorkloadGone = errors.New("backing workload not found")

// AccessDeniedError is returned when the capability check at the
// access-control boundary fails.
type AccessDeniedError struct{}

func (e *AccessDeniedError) Error() string { return "access denied" }

func (e *AccessDeniedError) IsAccessDenied() {}

var errAccessDenied = &AccessDeniedError{}
