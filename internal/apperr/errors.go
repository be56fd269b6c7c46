package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidSchedule reports a date that is neither a future instant nor a cron expression.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrInvalidTime reports a time-of-day string that is not HHMM.
	ErrInvalidTime   = errors.New("invalid time of day")
	ErrMissingConfig = errors.New("missing configuration")
	ErrUnsupported   = errors.New("unsupported on this platform")
)
