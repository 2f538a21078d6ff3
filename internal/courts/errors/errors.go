package errors

import "errors"

var (
	ErrNotFound = errors.New("court not found")

	ErrInvalidID = errors.New("invalid court ID format")

	ErrDuplicateCode = errors.New("court code already exists")

	ErrVersionConflict = errors.New("court version does not match")
)
