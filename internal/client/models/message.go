// Package models defines client-side data models shared by the ledgersync
// stores, services and ledger adapter.
package models

import (
	"encoding/json"
	"time"

	"github.com/holiman/uint256"
)

// MessageType classifies a message record.
type MessageType string

const (
	MessageTypePlain         MessageType = "plain"
	MessageTypeTransfer      MessageType = "transfer"
	MessageTypeItemTransfer  MessageType = "item_transfer"
	MessageTypeAdvertisement MessageType = "advertisement"
)

// IsTransfer reports whether messages of this type move value or items and
// therefore take part in confirmation tracking.
func (t MessageType) IsTransfer() bool {
	return t == MessageTypeTransfer || t == MessageTypeItemTransfer
}

// DeliveryStatus tracks an outbound message through the outbox.
type DeliveryStatus string

const (
	StatusReceived  DeliveryStatus = "received"
	StatusQueued    DeliveryStatus = "queued"
	StatusBroadcast DeliveryStatus = "broadcast"
	StatusFailed    DeliveryStatus = "failed"
)

// MessageID is the two-phase identifier of a message: a provisional local
// id assigned on creation and, once broadcast, the ledger transaction
// reference. Stores key messages on Key().
type MessageID struct {
	Local  string `json:"local,omitempty"`
	Ledger string `json:"ledger,omitempty"`
}

// LocalID returns an id that has not been broadcast yet.
func LocalID(id string) MessageID { return MessageID{Local: id} }

// LedgerID returns an id already known to the ledger.
func LedgerID(txRef string) MessageID { return MessageID{Ledger: txRef} }

// Key is the lookup key: the ledger reference when assigned, else the local id.
func (id MessageID) Key() string {
	if id.Ledger != "" {
		return id.Ledger
	}
	return id.Local
}

// Broadcast reports whether a ledger reference has been assigned.
func (id MessageID) Broadcast() bool { return id.Ledger != "" }

func (id MessageID) String() string { return id.Key() }

// BlockTime is either Pending (no confirmation seen yet) or Confirmed at a
// block height. The zero value is Pending.
type BlockTime struct {
	height    int64
	confirmed bool
}

// Pending is the block time of a message the ledger has not confirmed.
func Pending() BlockTime { return BlockTime{} }

// ConfirmedAt is the block time of a message included at height h.
func ConfirmedAt(h int64) BlockTime { return BlockTime{height: h, confirmed: true} }

func (b BlockTime) IsPending() bool { return !b.confirmed }

// Height returns the confirmation height; ok is false while pending.
func (b BlockTime) Height() (h int64, ok bool) { return b.height, b.confirmed }

// MarshalJSON encodes Pending as null and Confirmed as the height.
func (b BlockTime) MarshalJSON() ([]byte, error) {
	if !b.confirmed {
		return []byte("null"), nil
	}
	return json.Marshal(b.height)
}

func (b *BlockTime) UnmarshalJSON(data []byte) error {
	var h *int64
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	if h == nil {
		*b = Pending()
		return nil
	}
	*b = ConfirmedAt(*h)
	return nil
}

// Sender identifies the counterparty that authored a message.
type Sender struct {
	Key      string `json:"key"`
	Address  string `json:"address"`
	Username string `json:"username"`
}

// Message is a single record in a contact or offer thread.
type Message struct {
	ID        MessageID      `json:"id"`
	Type      MessageType    `json:"type"`
	Sender    Sender         `json:"sender"`
	Payload   string         `json:"payload"`
	Spent     *uint256.Int   `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	BlockTime BlockTime      `json:"block_time"`
	Status    DeliveryStatus `json:"status"`
	Outgoing  bool           `json:"outgoing"`
	OfferID   string         `json:"offer_id,omitempty"`
	Signature string         `json:"signature,omitempty"`
}

// Clone returns a deep copy so callers can never alias store internals.
func (m Message) Clone() Message {
	if m.Spent != nil {
		m.Spent = new(uint256.Int).Set(m.Spent)
	}
	return m
}

// AwaitingConfirmation reports whether the message is a broadcast transfer
// that the ledger has not confirmed yet.
func (m Message) AwaitingConfirmation() bool {
	return m.Type.IsTransfer() && m.BlockTime.IsPending()
}
