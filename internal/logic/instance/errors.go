package instance

import "errors"

var (
	ErrResolveTemplate = errors.New("resolve template")
	ErrUsageNotReady   = errors.New("usage metrics not available yet")
)

// AccessDeniedError is returned when the capability check at the
// access-control boundary fails. It is deliberately distinct from "not
// found" so the API layer can map the two separately.
type AccessDeniedError struct{}

func (e *AccessDeniedError) Error() string { return "access denied" }

func (e *AccessDeniedError) IsAccessDenied() {}

var errAccessDenied = &AccessDeniedError{}
