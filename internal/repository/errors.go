package repository

import "errors"

var (
	// ErrStoreCorrupt reports a backing store that cannot be read with its canonical schema.
	// Callers recover by calling Reset and retrying once.
	ErrStoreCorrupt  = errors.New("store is unreadable or corrupt")
	ErrTokenNotFound = errors.New("retake token not found")
)
