package domain

import "errors"

var (
	// ErrEmptyMessage rejects a send with neither text nor file reference.
	// Raised before the store is touched; nothing is persisted or broadcast.
	ErrEmptyMessage = errors.New("message has neither content nor file")

	// ErrInvalidToken means authentication failed; the connection stays
	// unauthenticated and the triggering event is dropped.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotFound is returned by store lookups for missing documents.
	ErrNotFound = errors.New("not found")
)
