package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrDuplicate = errors.New("booking reference already exists")

	ErrVersionConflict = errors.New("booking version does not match")

	ErrLockHeld = errors.New("court is locked by another booking request")
)
