package database

import "errors"

var (
	// ErrNotFound is returned when no record matches the given ID.
	ErrNotFound = errors.New("audit record not found")

	// ErrDuplicateID is returned when inserting a record whose ID already exists.
	ErrDuplicateID = errors.New("audit record id already exists")

	// ErrNilRecord is returned when Insert is called with a nil record.
	ErrNilRecord = errors.New("audit record is nil")
)
