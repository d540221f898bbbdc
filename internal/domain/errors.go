package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRun         = errors.New("invalid run")
	ErrUnusableExtraction = errors.New("unusable extraction")
	ErrProviderFailure    = errors.New("provider failure")
	ErrRunBusy            = errors.New("run busy")
)
