package reddit

import "errors"

var (
	// ErrInvalidConstruction is returned when an object is constructed with
	// both an identifier and a data payload, or with neither.
	ErrInvalidConstruction = errors.New("reddit: exactly one of identifier or data must be provided")

	// ErrAttributeNotFound is returned when an attribute is still unknown after
	// the object has been hydrated.
	ErrAttributeNotFound = errors.New("reddit: attribute not found")

	// ErrUnexpectedResponse is returned when the requester hands back a value
	// that cannot be turned into the expected object.
	ErrUnexpectedResponse = errors.New("reddit: unexpected response")
)
