package k8s

// NotFoundError represents a "not found" case the logic layer inspects
// through its private marker interface rather than importing this package.
type NotFoundError struct {
	kind string
}

func (e *NotFoundError) Error() string {
	return e.kind + " not found"
}

func (e *NotFoundError) IsNotFound() {}

var (
	errNamespaceNotFound = &NotFoundError{kind: "namespace"}
	errPodNotFound       = &NotFoundError{kind: "pod"}
	errMetricsNotFound   = &NotFoundError{kind: "pod metrics"}
	errServiceNotFound   = &NotFoundError{kind: "service"}
)
