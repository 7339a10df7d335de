package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: write collided with existing state
//   - ErrUnavailable: backing service temporarily unavailable
//
// Ownership failures are a domain rule, not a storage fact, and are reported
// by the service with a domain error code.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
