package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrNotApplicable = errors.New("not applicable")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrStorage wraps unexpected record store failures.
	ErrStorage = errors.New("storage failure")
)
