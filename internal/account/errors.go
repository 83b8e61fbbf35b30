package account

import "errors"

// Failure classes returned by Service operations. Callers match them with
// errors.Is; the wrapped cause is for logs only.
var (
	ErrNotFound     = errors.New("admin record not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("reset token expired")
	ErrInvalid      = errors.New("reset token invalid")
	ErrTransport    = errors.New("record store unreachable")
	ErrDelivery     = errors.New("reset link delivery failed")
	ErrWeakPassword = errors.New("password does not meet policy")
)
