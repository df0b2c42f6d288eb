package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageID_KeyCollapsesToLedgerRef(t *testing.T) {
	id := LocalID("tmp-1")
	assert.Equal(t, "tmp-1", id.Key())
	assert.False(t, id.Broadcast())

	id.Ledger = "tx-9"
	assert.Equal(t, "tx-9", id.Key())
	assert.True(t, id.Broadcast())
	assert.Equal(t, "tx-9", LedgerID("tx-9").Key())
}

func TestBlockTime_ZeroValueIsPending(t *testing.T) {
	var b BlockTime
	assert.True(t, b.IsPending())
	_, ok := b.Height()
	assert.False(t, ok)

	c := ConfirmedAt(120)
	h, ok := c.Height()
	assert.True(t, ok)
	assert.Equal(t, int64(120), h)
}

func TestBlockTime_JSON(t *testing.T) {
	b, err := json.Marshal(Pending())
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	b, err = json.Marshal(ConfirmedAt(7))
	require.NoError(t, err)
	assert.Equal(t, "7", string(b))

	var got BlockTime
	require.NoError(t, json.Unmarshal([]byte("42"), &got))
	assert.Equal(t, ConfirmedAt(42), got)
	require.NoError(t, json.Unmarshal([]byte("null"), &got))
	assert.True(t, got.IsPending())
}

func TestMessageType_IsTransfer(t *testing.T) {
	assert.True(t, MessageTypeTransfer.IsTransfer())
	assert.True(t, MessageTypeItemTransfer.IsTransfer())
	assert.False(t, MessageTypePlain.IsTransfer())
	assert.False(t, MessageTypeAdvertisement.IsTransfer())
}

func TestMessage_CloneDoesNotAliasSpent(t *testing.T) {
	m := Message{Spent: uint256.NewInt(5)}
	c := m.Clone()
	c.Spent.SetUint64(9)
	assert.Equal(t, uint64(5), m.Spent.Uint64())
}

func TestEnvelope_SigningBytesStableAndMessage(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000).UTC()
	e := &Envelope{
		ID: "local-1", Type: MessageTypeTransfer, Sender: "me", SenderName: "alice",
		Recipient: "you", Data: "hi", Spent: uint256.NewInt(10), CreatedAt: at,
	}

	a, err := e.SigningBytes()
	require.NoError(t, err)
	b, err := e.SigningBytes()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, string(a), `"spent":"10"`)

	m := e.Message()
	assert.Equal(t, LocalID("local-1"), m.ID)
	assert.Equal(t, StatusQueued, m.Status)
	assert.True(t, m.Outgoing)
	assert.True(t, m.AwaitingConfirmation())
}

func TestEnvelope_JSONKeepsSignature(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000).UTC()
	e := Envelope{
		ID: "local-1", Type: MessageTypePlain, Sender: "me", SenderName: "alice",
		Recipient: "you", Data: "hi", Spent: uint256.NewInt(0), CreatedAt: at, Signature: "sig",
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var got Envelope
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, e, got)

	require.Error(t, json.Unmarshal([]byte(`{"spent":"abc"}`), &got))
}

func TestRecipient_ValidateAndKey(t *testing.T) {
	require.Error(t, Recipient{Username: "x"}.Validate())
	require.NoError(t, Recipient{Address: "addr"}.Validate())

	assert.Equal(t, "addr", Recipient{Address: "addr"}.ContactKey())
	assert.Equal(t, "pk", Recipient{Key: "pk", Address: "addr"}.ContactKey())
}

func TestInboundMessage_Message(t *testing.T) {
	in := InboundMessage{
		TxRef: "tx1", Type: MessageTypeTransfer, SenderKey: "pk", SenderAddress: "addr",
		SenderName: "bob", Data: "hi", Spent: uint256.NewInt(3),
	}
	m := in.Message()
	assert.Equal(t, "tx1", m.ID.Key())
	assert.True(t, m.ID.Broadcast())
	assert.True(t, m.BlockTime.IsPending())
	assert.Equal(t, StatusReceived, m.Status)
	assert.False(t, m.Outgoing)
	assert.Equal(t, "pk", in.ContactKey())

	in.BlockHeight = 42
	in.SenderKey = ""
	h, ok := in.Message().BlockTime.Height()
	assert.True(t, ok)
	assert.EqualValues(t, 42, h)
	assert.Equal(t, "addr", in.ContactKey())
}

func TestSendRequest_Validate(t *testing.T) {
	ok := SendRequest{
		Message:  OutgoingMessage{Type: MessageTypePlain, Data: "hi"},
		Receiver: Recipient{Address: "addr"},
	}
	tests := []struct {
		name    string
		mutate  func(r *SendRequest)
		wantErr bool
	}{
		{"plain", func(r *SendRequest) {}, false},
		{"missing address", func(r *SendRequest) { r.Receiver.Address = "" }, true},
		{"unknown type", func(r *SendRequest) { r.Message.Type = "poke" }, true},
		{"transfer without amount", func(r *SendRequest) { r.Message.Type = MessageTypeTransfer }, true},
		{"transfer with zero", func(r *SendRequest) {
			r.Message.Type = MessageTypeTransfer
			r.Message.Spent = uint256.NewInt(0)
		}, true},
		{"transfer with amount", func(r *SendRequest) {
			r.Message.Type = MessageTypeTransfer
			r.Message.Spent = uint256.NewInt(5)
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ok
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
