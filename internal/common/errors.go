package common

import "errors"

// Callers should use errors.Is to match these values.
var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Persisted data could not be decoded.
	ErrorCorruptData = errors.New("corrupt data")
)
