package docstore

import "errors"

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrAlreadyExists    = errors.New("document already exists")
	ErrNotFound         = errors.New("document not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("document changed since it was loaded")
)
