package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Contact is a read-only snapshot of a conversation partner and its threads.
type Contact struct {
	Key           string
	Address       string
	Username      string
	LastSeen      *time.Time
	Messages      []Message
	VaultMessages []Message
	Unread        []string
	OfferID       string
}

// Recipient addresses an outbound direct message.
type Recipient struct {
	Key      string
	Address  string
	Username string
}

func (r Recipient) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Address, validation.Required),
	)
}

// ContactKey is the store key of the recipient: its public-key derived key
// when known, else its address.
func (r Recipient) ContactKey() string {
	if r.Key != "" {
		return r.Key
	}
	return r.Address
}

// Page is a window over the newest messages of a thread.
type Page struct {
	Messages []Message
	// HasMore is true when older messages exist beyond the limit.
	HasMore bool
}

// Offer is a marketplace listing with its own message thread.
type Offer struct {
	ID       string
	Address  string
	Username string
	Messages []Message
}
