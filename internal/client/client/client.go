package client

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
)

// Broadcaster submits a signed envelope and returns its transaction reference.
type Broadcaster interface {
	Broadcast(ctx context.Context, env models.Envelope) (string, error)
}

// Client is the ledger node adapter used by the sync core.
type Client interface {
	Broadcaster
	Close() error
	GetStatus(ctx context.Context) (models.NodeStatus, error)
	GetBalance(ctx context.Context, address string) (*uint256.Int, error)
	GetFreeUtxos(ctx context.Context, address string) ([]models.Utxo, error)
	GetConfirmations(ctx context.Context, txRef string) (int64, error)
	FetchMessages(ctx context.Context, address string) ([]models.InboundMessage, error)
}
