package domain

import "errors"

// Sentinel errors for the admission and reload paths. All are scoped to one
// connection, one tick, or one reload attempt; none is fatal to the process.
var (
	// ErrCapacityExceeded means registration was refused because the registry
	// is at its configured maximum. The connection is never created.
	ErrCapacityExceeded = errors.New("connection capacity exceeded")

	// ErrOriginDenied means the upgrade was refused before a connection was
	// created because the Origin header is not in the allowed set.
	ErrOriginDenied = errors.New("origin not allowed")

	// ErrUpstreamFetch means the expensive payload could not be fetched this
	// tick. Reference-mode pushes proceed independently.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)
