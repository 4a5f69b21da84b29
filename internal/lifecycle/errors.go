package lifecycle

import "errors"

// Operation errors. Handlers map these onto HTTP status codes with errors.Is;
// every failure is scoped to the single operation that raised it.
var (
	// ErrValidation marks malformed caller input. No state was changed.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound is returned when the referenced ride request is absent.
	ErrNotFound = errors.New("ride request not found")

	// ErrForbidden is returned when an authenticated caller lacks rights
	// over the entity (not the owning passenger / assigned driver).
	ErrForbidden = errors.New("access denied")

	// ErrInvalidTransition is returned when the request exists but its
	// status does not permit the operation.
	ErrInvalidTransition = errors.New("ride request status does not permit this operation")

	// ErrUnmatchedDriver is returned by SelectDriver when the chosen driver
	// never applied to the request.
	ErrUnmatchedDriver = errors.New("driver has not applied to this ride")

	// ErrDuplicateApplication is returned when a driver applies twice to
	// the same request.
	ErrDuplicateApplication = errors.New("driver already applied to this ride")

	// ErrAlreadyCompleted is returned by Cancel on a completed ride.
	ErrAlreadyCompleted = errors.New("cannot cancel a completed ride")
)
