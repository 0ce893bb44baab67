package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors or
// lock reasons.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: a concurrent writer won (serialization failure, lost claim)
//   - ErrUnavailable: backing service temporarily refused (open circuit)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
