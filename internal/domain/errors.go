package domain

import "errors"

var (
	// ErrConfiguration is returned for missing API keys or filter mappings.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport covers HTTP error statuses, network failures and timeouts.
	ErrTransport = errors.New("transport error")
	// ErrParse covers malformed payloads.
	ErrParse = errors.New("parse error")
	// ErrPersistenceConflict is returned when a unique constraint rejects a write.
	ErrPersistenceConflict = errors.New("persistence conflict")
	// ErrNotFound is returned by lookups that matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrRunInProgress is returned when an aggregation run is already executing.
	ErrRunInProgress = errors.New("aggregation run already in progress")
)
