package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/common"
	"github.com/dmitrijs2005/ledgersync/internal/cryptox"
)

// IdentityHolder holds the active identity of the unlocked vault.
type IdentityHolder struct {
	mu       sync.RWMutex
	identity *models.Identity
	now      func() time.Time
	// onChange observes activation, e.g. to announce the address to the node.
	onChange func(models.Identity)
}

func NewIdentityHolder() *IdentityHolder {
	return &IdentityHolder{now: time.Now}
}

// OnChange registers fn to run after every Set.
func (h *IdentityHolder) OnChange(fn func(models.Identity)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

func (h *IdentityHolder) Set(id models.Identity) {
	h.mu.Lock()
	cp := id
	cp.Seed = append([]byte(nil), id.Seed...)
	h.identity = &cp
	fn := h.onChange
	h.mu.Unlock()

	if fn != nil {
		fn(id)
	}
}

// Identity returns the active identity without its seed.
func (h *IdentityHolder) Identity() (models.Identity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.identity == nil {
		return models.Identity{}, false
	}
	id := *h.identity
	id.Seed = nil
	return id, true
}

// NewEnvelope builds and signs a direct message to recipientAddress. The
// spent amount is kept only for value transfers.
func (h *IdentityHolder) NewEnvelope(msg models.OutgoingMessage, recipientAddress string) (models.Envelope, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.identity == nil {
		return models.Envelope{}, ErrNoIdentity
	}

	spent := uint256.NewInt(0)
	if msg.Type == models.MessageTypeTransfer && msg.Spent != nil {
		spent.Set(msg.Spent)
	}
	env := models.Envelope{
		ID:         uuid.NewString(),
		Type:       msg.Type,
		Sender:     h.identity.Address,
		SenderName: h.identity.Name,
		Recipient:  recipientAddress,
		Data:       msg.Data,
		Spent:      spent,
		CreatedAt:  h.now().UTC().Truncate(time.Millisecond),
	}
	body, err := env.SigningBytes()
	if err != nil {
		return models.Envelope{}, fmt.Errorf("encode envelope: %w", err)
	}
	if env.Signature, err = cryptox.Sign(h.identity.Seed, body); err != nil {
		return models.Envelope{}, fmt.Errorf("sign envelope: %w", err)
	}
	return env, nil
}

// legacyIdentity is the identity record written by earlier releases.
type legacyIdentity struct {
	Name string `json:"name"`
	Seed []byte `json:"seed"`
}

// KeyIdentityCreator creates ed25519 identities, reading the seed from the
// legacy store when migrating.
type KeyIdentityCreator struct {
	Legacy LegacyStore
}

func (c KeyIdentityCreator) CreateIdentity(ctx context.Context, name string, fromMigration bool) (models.Identity, error) {
	var (
		kp  cryptox.KeyPair
		err error
	)
	if fromMigration {
		if c.Legacy == nil {
			return models.Identity{}, fmt.Errorf("migration requested without a legacy store")
		}
		raw, err := c.Legacy.Get(ctx, common.KeyIdentity)
		if err != nil {
			return models.Identity{}, fmt.Errorf("read legacy identity: %w", err)
		}
		if raw == nil {
			return models.Identity{}, fmt.Errorf("legacy identity: %w", common.ErrorNotFound)
		}
		var li legacyIdentity
		if err := json.Unmarshal(raw, &li); err != nil {
			return models.Identity{}, fmt.Errorf("decode legacy identity: %w", common.ErrorCorruptData)
		}
		if kp, err = cryptox.KeyPairFromSeed(li.Seed); err != nil {
			return models.Identity{}, fmt.Errorf("legacy identity seed: %w", err)
		}
		if li.Name != "" {
			name = li.Name
		}
	} else if kp, err = cryptox.NewKeyPair(); err != nil {
		return models.Identity{}, fmt.Errorf("generate key: %w", err)
	}

	return models.Identity{
		Name:      name,
		Address:   cryptox.Address(kp.PublicKey),
		PublicKey: kp.PublicKey,
		Seed:      kp.Seed,
	}, nil
}
