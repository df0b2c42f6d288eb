package services

import (
	"context"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/client/store"
	"github.com/dmitrijs2005/ledgersync/internal/logging"
)

// Scope names the thread a confirmation was applied to.
type Scope string

const (
	ScopeContact Scope = "contact"
	ScopeVault   Scope = "vault"
	ScopeOffer   Scope = "offer"
)

// Confirmation is a block time resolved by the tracker.
type Confirmation struct {
	Scope     Scope
	EntityKey string
	MessageID string
	BlockTime models.BlockTime
}

// ConfirmationTracker resolves the block time of broadcast transfers that
// are still pending.
type ConfirmationTracker struct {
	source   ConfirmationSource
	contacts *store.ContactStore
	offers   *store.OfferStore
	log      logging.Logger
}

func NewConfirmationTracker(source ConfirmationSource, contacts *store.ContactStore, offers *store.OfferStore, log logging.Logger) *ConfirmationTracker {
	return &ConfirmationTracker{source: source, contacts: contacts, offers: offers, log: log}
}

// Reconcile checks every pending transfer of every contact thread, vault
// thread and offer thread against the ledger and confirms those with at
// least one confirmation at latestBlock - confirmations. Lookup failures
// are logged and the message is retried on the next call. It returns the
// confirmations that were applied.
func (t *ConfirmationTracker) Reconcile(ctx context.Context, latestBlock int64) []Confirmation {
	if latestBlock <= 0 {
		return nil
	}

	var applied []Confirmation
	for _, c := range t.contacts.Contacts() {
		for _, m := range c.Messages {
			if conf, ok := t.resolve(ctx, ScopeContact, c.Key, m, latestBlock); ok {
				if err := t.contacts.SetBlockTime(c.Key, conf.MessageID, conf.BlockTime); err != nil {
					t.log.Warn(ctx, "set block time failed", "contact", c.Key, "id", conf.MessageID, "error", err)
					continue
				}
				applied = append(applied, conf)
			}
		}
		for _, m := range c.VaultMessages {
			if conf, ok := t.resolve(ctx, ScopeVault, c.Key, m, latestBlock); ok {
				if err := t.contacts.SetVaultBlockTime(c.Key, conf.MessageID, conf.BlockTime); err != nil {
					t.log.Warn(ctx, "set vault block time failed", "contact", c.Key, "id", conf.MessageID, "error", err)
					continue
				}
				applied = append(applied, conf)
			}
		}
	}

	if t.offers == nil {
		return applied
	}
	for _, o := range t.offers.Offers() {
		for _, m := range o.Messages {
			if conf, ok := t.resolve(ctx, ScopeOffer, o.ID, m, latestBlock); ok {
				if err := t.offers.SetMessageBlockTime(o.ID, conf.MessageID, conf.BlockTime); err != nil {
					t.log.Warn(ctx, "set offer block time failed", "offer", o.ID, "id", conf.MessageID, "error", err)
					continue
				}
				applied = append(applied, conf)
			}
		}
	}
	return applied
}

func (t *ConfirmationTracker) resolve(ctx context.Context, scope Scope, key string, m models.Message, latestBlock int64) (Confirmation, bool) {
	// Messages still under a provisional id have nothing to look up yet.
	if !m.AwaitingConfirmation() || !m.ID.Broadcast() {
		return Confirmation{}, false
	}
	if ctx.Err() != nil {
		return Confirmation{}, false
	}

	n, err := t.source.GetConfirmations(ctx, m.ID.Ledger)
	if err != nil {
		t.log.Debug(ctx, "confirmation lookup failed", "scope", scope, "key", key, "tx", m.ID.Ledger, "error", err)
		return Confirmation{}, false
	}
	if n <= 0 || n > latestBlock {
		return Confirmation{}, false
	}
	return Confirmation{
		Scope:     scope,
		EntityKey: key,
		MessageID: m.ID.Key(),
		BlockTime: models.ConfirmedAt(latestBlock - n),
	}, true
}
