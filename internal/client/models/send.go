package models

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/holiman/uint256"
)

// OutgoingMessage is the user-supplied content of a direct message before
// it is signed.
type OutgoingMessage struct {
	Type  MessageType
	Data  string
	Spent *uint256.Int
}

func (m OutgoingMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Type, validation.Required, validation.In(
			MessageTypePlain, MessageTypeTransfer, MessageTypeItemTransfer, MessageTypeAdvertisement,
		)),
		validation.Field(&m.Spent, validation.When(m.Type == MessageTypeTransfer,
			validation.By(positiveAmount))),
	)
}

func positiveAmount(v any) error {
	a, _ := v.(*uint256.Int)
	if a == nil || a.IsZero() {
		return errors.New("must be a positive amount")
	}
	return nil
}

// SendRequest is a direct message addressed to a recipient.
type SendRequest struct {
	Message  OutgoingMessage
	Receiver Recipient
}

func (r SendRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message),
		validation.Field(&r.Receiver),
	)
}
