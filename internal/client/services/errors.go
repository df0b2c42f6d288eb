package services

import "errors"

var (
	ErrQueueClosed = errors.New("outbox closed")
	// ErrDeliveryFailed is reported for messages the outbox gave up on.
	ErrDeliveryFailed = errors.New("delivery failed")
	ErrNoIdentity     = errors.New("no active identity")
	ErrVaultBusy      = errors.New("vault operation already in progress")
)
