package errors

import "errors"

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrInvalidID        = errors.New("invalid resource ID")
)
