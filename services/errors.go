package services

import "errors"

// Sentinel errors the controllers translate into HTTP statuses. Services wrap
// these with context via fmt.Errorf("%w: ..."), so controllers must match
// with errors.Is, never by message.
var (
	// ErrNotFound: the addressed record does not exist. Surfaced before
	// any authorization check so a missing resource and a forbidden one
	// are indistinguishable only in the forbidden direction, not this one.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: the caller is authenticated but lacks the role or
	// ownership for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidCredentials: login failed. The same error regardless of
	// whether the username exists, so nothing leaks.
	ErrInvalidCredentials = errors.New("wrong credentials")

	// ErrValidation: the request is malformed (missing field, bad value).
	ErrValidation = errors.New("invalid request")

	// ErrConflict: a uniqueness constraint would be violated.
	ErrConflict = errors.New("already exists")

	// ErrExternalService: the media host failed. For deletion flows this
	// is reported as a warning, not an abort.
	ErrExternalService = errors.New("media host error")
)
