package errors

import "errors"

var (
	ErrNotFound = errors.New("payment not found")

	ErrInvalidID = errors.New("invalid payment ID format")

	ErrDuplicate = errors.New("payment reference already exists")

	ErrVersionConflict = errors.New("payment version does not match")
)
