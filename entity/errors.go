package entity

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrAlreadySettled     = errors.New("entry already paid or refunded")
	ErrInvalidFee         = errors.New("invalid registration fee")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrMalformedEvent     = errors.New("malformed event")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidReference   = errors.New("invalid reference")
	ErrExternalProcessor  = errors.New("payment processor error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotConfigured      = errors.New("webhook secret not configured")

	// ErrDuplicateEntry is returned by stores when the (category, creator) pair
	// is already taken; services resolve it and never pass it to callers.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// IsRetryable reports whether the caller may repeat the request that failed with err.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrExternalProcessor)
}
