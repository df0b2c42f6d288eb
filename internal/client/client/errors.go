package client

import "errors"

var (
	ErrUnavailable  = errors.New("ledger unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	// ErrMalformedResponse is returned when a reply is missing a field or a
	// field has the wrong type.
	ErrMalformedResponse = errors.New("malformed ledger response")
)
