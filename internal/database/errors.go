package database

import "errors"

// Storage-level outcomes that the domain layer translates into its own errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrStateConflict = errors.New("face tag is no longer pending")
	ErrDuplicate     = errors.New("duplicate record")
	ErrInUse         = errors.New("record is still referenced")
)
