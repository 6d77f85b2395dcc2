package internal

import "errors"

var (
	// ErrNotFound indicates a member or Slack mapping could not be resolved.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a bad hour value or malformed submission.
	// Reported back to the submitting user, never fatal.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExternalService indicates an unreachable or failing external API.
	// Fatal at startup when no cache snapshot exists.
	ErrExternalService = errors.New("external service error")

	// ErrPersistence indicates a ledger write failed. Fatal, since an
	// acknowledged entry must survive a process restart.
	ErrPersistence = errors.New("persistence error")
)
