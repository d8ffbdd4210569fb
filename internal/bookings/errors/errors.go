package errors

import "errors"

var (
	ErrDraftNotFound = errors.New("reservation draft not found")

	ErrOrderNotFound = errors.New("order not found")

	ErrInvalidToken = errors.New("invalid lock token")

	// ErrHandoffRejected is returned when the order system refused the cart item.
	ErrHandoffRejected = errors.New("order system rejected the cart handoff")

	ErrProductUnmapped = errors.New("resource has no product mapping")
)
