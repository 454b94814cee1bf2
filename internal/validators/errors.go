package validators

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type for validation")
	ErrUnknownField    = errors.New("unknown field for validation")

	ErrInvalidDate    = errors.New("date must be a calendar date in YYYY-MM-DD format")
	ErrInvalidHours   = errors.New("hours must be a non-negative number")
	ErrInvalidTripID  = errors.New("tripId must be a positive number")
	ErrInvalidTrip    = errors.New("trip id must be a positive number")
	ErrEmptySpecies   = errors.New("species is required")
	ErrInvalidChildID = errors.New("id must have the form <tripId>-<suffix>")
	ErrInvalidPhoto   = errors.New("photo must be either inline or stored, not both")
)

// ValidationError names the offending field of a rejected value. It matches
// the sentinel it wraps through errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
