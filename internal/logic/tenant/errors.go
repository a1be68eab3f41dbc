package tenant

import "errors"

var (
	ErrCreateNamespace = errors.New("create namespace")
	ErrLookupNamespace = errors.New("lookup namespace")

	// ErrProtectedNamespace guards shared infrastructure from cascade deletes.
	ErrProtectedNamespace = errors.New("refusing to delete protected namespace")
)
