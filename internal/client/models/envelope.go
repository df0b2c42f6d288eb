package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// Envelope is a signed outbound direct message ready for broadcast.
type Envelope struct {
	ID         string
	Type       MessageType
	Sender     string
	SenderName string
	Recipient  string
	Data       string
	Spent      *uint256.Int
	CreatedAt  time.Time
	Signature  string
}

type envelopeJSON struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	Sender     string      `json:"sender"`
	SenderName string      `json:"sender_name"`
	Recipient  string      `json:"recipient"`
	Data       string      `json:"data"`
	Spent      string      `json:"spent"`
	CreatedAt  int64       `json:"created_at"`
}

// SigningBytes is the canonical encoding covered by the signature.
func (e *Envelope) SigningBytes() ([]byte, error) {
	spent := "0"
	if e.Spent != nil {
		spent = e.Spent.Dec()
	}
	return json.Marshal(envelopeJSON{
		ID:         e.ID,
		Type:       e.Type,
		Sender:     e.Sender,
		SenderName: e.SenderName,
		Recipient:  e.Recipient,
		Data:       e.Data,
		Spent:      spent,
		CreatedAt:  e.CreatedAt.UnixMilli(),
	})
}

type storedEnvelope struct {
	envelopeJSON
	Signature string `json:"signature,omitempty"`
}

// MarshalJSON encodes the envelope with its signature for the outbox table.
func (e Envelope) MarshalJSON() ([]byte, error) {
	body, err := e.SigningBytes()
	if err != nil {
		return nil, err
	}
	var s storedEnvelope
	if err := json.Unmarshal(body, &s.envelopeJSON); err != nil {
		return nil, err
	}
	s.Signature = e.Signature
	return json.Marshal(s)
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var s storedEnvelope
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	spent, err := uint256.FromDecimal(s.Spent)
	if err != nil {
		return fmt.Errorf("envelope spent %q: %w", s.Spent, err)
	}
	*e = Envelope{
		ID:         s.ID,
		Type:       s.Type,
		Sender:     s.Sender,
		SenderName: s.SenderName,
		Recipient:  s.Recipient,
		Data:       s.Data,
		Spent:      spent,
		CreatedAt:  time.UnixMilli(s.CreatedAt).UTC(),
		Signature:  s.Signature,
	}
	return nil
}

// Message converts the envelope into the record kept in the sender's own
// thread. The message starts queued and pending.
func (e *Envelope) Message() Message {
	var spent *uint256.Int
	if e.Spent != nil {
		spent = new(uint256.Int).Set(e.Spent)
	}
	return Message{
		ID:        LocalID(e.ID),
		Type:      e.Type,
		Sender:    Sender{Address: e.Sender, Username: e.SenderName},
		Payload:   e.Data,
		Spent:     spent,
		CreatedAt: e.CreatedAt,
		BlockTime: Pending(),
		Status:    StatusQueued,
		Outgoing:  true,
		Signature: e.Signature,
	}
}
