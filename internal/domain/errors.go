package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNoBook            = errors.New("no book for token")
	ErrInsufficientDepth = errors.New("insufficient depth")
	ErrOrderTooSmall     = errors.New("shares below market minimum order size")
	ErrStaleBook         = errors.New("book too stale")
	ErrHalted            = errors.New("engine halted")
	ErrLockHeld          = errors.New("lock already held")
	ErrWSDisconnect      = errors.New("websocket disconnected")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limited")
	ErrSigningFailed     = errors.New("signing failed")
)
