package models

import "errors"

// Core error taxonomy. Components wrap these with fmt.Errorf("%w: ...") and
// the transport edges translate them with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrAdmissionDenied  = errors.New("admission denied")
)
