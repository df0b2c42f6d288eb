package models

import (
	"time"

	"github.com/holiman/uint256"
)

// InboundMessage is a message addressed to the local identity as reported
// by the ledger or the relay. BlockHeight is zero until the transaction is
// included in a block.
type InboundMessage struct {
	TxRef         string
	Type          MessageType
	SenderKey     string
	SenderAddress string
	SenderName    string
	Recipient     string
	Data          string
	Spent         *uint256.Int
	CreatedAt     time.Time
	BlockHeight   int64
	OfferID       string
	Signature     string
}

// ContactKey is the store key of the sender.
func (m InboundMessage) ContactKey() string {
	if m.SenderKey != "" {
		return m.SenderKey
	}
	return m.SenderAddress
}

// Message converts the inbound record into a thread message keyed on its
// ledger reference.
func (m InboundMessage) Message() Message {
	bt := Pending()
	if m.BlockHeight > 0 {
		bt = ConfirmedAt(m.BlockHeight)
	}
	var spent *uint256.Int
	if m.Spent != nil {
		spent = new(uint256.Int).Set(m.Spent)
	}
	return Message{
		ID:        LedgerID(m.TxRef),
		Type:      m.Type,
		Sender:    Sender{Key: m.SenderKey, Address: m.SenderAddress, Username: m.SenderName},
		Payload:   m.Data,
		Spent:     spent,
		CreatedAt: m.CreatedAt,
		BlockTime: bt,
		Status:    StatusReceived,
		OfferID:   m.OfferID,
		Signature: m.Signature,
	}
}
