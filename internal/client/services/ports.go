package services

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
)

// StatusSource reports the ledger node state.
type StatusSource interface {
	GetStatus(ctx context.Context) (models.NodeStatus, error)
}

// WalletSource reports spendable funds of an address.
type WalletSource interface {
	GetBalance(ctx context.Context, address string) (*uint256.Int, error)
	GetFreeUtxos(ctx context.Context, address string) ([]models.Utxo, error)
}

// ConfirmationSource returns how many blocks ago a transaction was included.
type ConfirmationSource interface {
	GetConfirmations(ctx context.Context, txRef string) (int64, error)
}

// MessageSource lists messages addressed to an address.
type MessageSource interface {
	FetchMessages(ctx context.Context, address string) ([]models.InboundMessage, error)
}

// Broadcaster submits a signed envelope and returns its ledger reference.
type Broadcaster interface {
	Broadcast(ctx context.Context, env models.Envelope) (string, error)
}

// IdentityCreator derives a new identity. With fromMigration set it seeds the
// identity from the legacy store instead of fresh randomness.
type IdentityCreator interface {
	CreateIdentity(ctx context.Context, name string, fromMigration bool) (models.Identity, error)
}

// Faucet requests initial funds for an address.
type Faucet interface {
	RequestFunds(ctx context.Context, address string) error
}

// Guide receives UI guidance commands such as opening a modal.
type Guide interface {
	OpenModal(name string)
}

// LegacyStore is the identity store of earlier client releases.
type LegacyStore interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Clear(ctx context.Context) error
}
