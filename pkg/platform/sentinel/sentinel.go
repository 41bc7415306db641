package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// so services can translate them into domain errors.
//
// These describe the state of a record, not validation failures:
// - ErrNotFound: no record with that id exists
// - ErrConflict: the id is currently occupied
// - ErrAlreadyUsed: the id was issued before and is retired
// - ErrUnavailable: the backing store cannot be reached
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
