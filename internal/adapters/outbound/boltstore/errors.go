package boltstore

// RecordNotFoundError represents a "not found" case the logic layer inspects
// through its private marker interface.
type RecordNotFoundError struct{}

func (e *RecordNotFoundError) Error() string {
	return "record not found"
}

func (e *RecordNotFoundError) IsNotFound() {}

var errRecordNotFound = &RecordNotFoundError{}
