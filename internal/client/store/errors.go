package store

import "errors"

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrOfferNotFound   = errors.New("offer not found")
	ErrMessageNotFound = errors.New("message not found")
	// ErrAlreadyRenamed is returned when a message that already carries a
	// ledger reference is renamed to a different one.
	ErrAlreadyRenamed = errors.New("message already has a ledger reference")
	ErrDuplicateKey   = errors.New("message key already in use")
)
