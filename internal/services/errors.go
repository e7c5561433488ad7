// Package services defines the business logic of the search pipeline: the
// fan-out coordinator and the per-indexer query tasks. This file centralizes
// common service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrIndexerTimeout marks a per-indexer outcome whose query exceeded its
	// deadline. It is always carried inside an Outcome, never returned from
	// Search itself: a slow indexer must not abort its siblings.
	ErrIndexerTimeout = errors.New("indexer query timed out")

	// ErrNoIndexers is returned when the registry resolves successfully but
	// contains no enabled indexer to query.
	ErrNoIndexers = errors.New("no enabled indexers configured")
)
