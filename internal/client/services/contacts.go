package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/ledgersync/internal/client/store"
	"github.com/dmitrijs2005/ledgersync/internal/common"
	"github.com/dmitrijs2005/ledgersync/internal/logging"
)

// ContactService is the user-facing surface over contacts: sending, reading
// and deleting conversations.
type ContactService struct {
	outbox   *Outbox
	contacts *store.ContactStore
	meta     metadata.Repository
	log      logging.Logger
	now      func() time.Time
}

func NewContactService(outbox *Outbox, contacts *store.ContactStore, meta metadata.Repository, log logging.Logger) *ContactService {
	return &ContactService{outbox: outbox, contacts: contacts, meta: meta, log: log, now: time.Now}
}

// SendDirectMessage queues msg for the receiver and returns the queued item.
// A receiver without a key is resolved against known contacts first, so a
// reply typed by address lands in the counterparty's existing thread.
func (s *ContactService) SendDirectMessage(ctx context.Context, req models.SendRequest, redirect bool) (QueuedItem, error) {
	if req.Receiver.Key == "" && req.Receiver.Address != "" {
		resolved := s.ResolveRecipient(req.Receiver.Address)
		if req.Receiver.Username != "" {
			resolved.Username = req.Receiver.Username
		}
		req.Receiver = resolved
	}
	if err := req.Validate(); err != nil {
		return QueuedItem{}, fmt.Errorf("invalid send request: %w", err)
	}
	return s.outbox.Enqueue(ctx, req.Message, req.Receiver, redirect)
}

// ResolveRecipient maps target, a contact key or an address, to a
// Recipient. A contact keyed by target wins; otherwise the first contact
// with a public-key derived key and that address is used. Unknown targets
// are treated as a bare address.
func (s *ContactService) ResolveRecipient(target string) models.Recipient {
	if c, ok := s.contacts.Contact(target); ok && c.Address != "" {
		return models.Recipient{Key: c.Key, Address: c.Address, Username: c.Username}
	}
	var fallback *models.Recipient
	for _, c := range s.contacts.Contacts() {
		if c.Address != target {
			continue
		}
		r := models.Recipient{Key: c.Key, Address: c.Address, Username: c.Username}
		if c.Key != c.Address {
			return r
		}
		if fallback == nil {
			fallback = &r
		}
	}
	if fallback != nil {
		return *fallback
	}
	return models.Recipient{Address: target}
}

// MarkSeen clears the unread set of a contact and records the read time.
func (s *ContactService) MarkSeen(ctx context.Context, key string) error {
	if err := s.contacts.CleanUnread(key); err != nil {
		return err
	}
	return s.contacts.SetLastSeen(key, s.now())
}

// CreateVaultContact registers a contact for the vault thread of recipient.
func (s *ContactService) CreateVaultContact(recipient models.Recipient) bool {
	return s.contacts.UpsertContact(recipient.ContactKey(), recipient.Address, recipient.Username, "")
}

// DeleteChannel removes a conversation. A tombstone timestamp is persisted
// first so messages created up to at are not fetched back in.
func (s *ContactService) DeleteChannel(ctx context.Context, key string, at time.Time) error {
	ts := strconv.FormatInt(at.UnixNano(), 10)
	if err := s.meta.Set(ctx, common.KeyRemovedChannelsPrefix+key, []byte(ts)); err != nil {
		return fmt.Errorf("persist tombstone for %s: %w", key, err)
	}
	s.contacts.RemoveContact(key)
	s.log.Info(ctx, "channel deleted", "contact", key)
	return nil
}

// LinkUserRedirect attaches a nickname to the contact reached at address.
func (s *ContactService) LinkUserRedirect(address, nickname string) error {
	return s.contacts.RebindUsername(address, nickname)
}

func (s *ContactService) View(key string, limit int) (models.Page, error) {
	return s.contacts.View(key, limit)
}

func (s *ContactService) Contacts() []models.Contact {
	return s.contacts.Contacts()
}

func (s *ContactService) Unread(key string) int {
	return s.contacts.Unread(key)
}
