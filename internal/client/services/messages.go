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

// MessageService is the inbound message poll: it merges fetched messages
// into the contact and offer stores, refreshes unread sets and runs the
// confirmation tracker.
type MessageService struct {
	source   MessageSource
	ids      *IdentityHolder
	node     *NodeService
	contacts *store.ContactStore
	offers   *store.OfferStore
	tracker  *ConfirmationTracker
	meta     metadata.Repository
	log      logging.Logger
}

func NewMessageService(
	source MessageSource,
	ids *IdentityHolder,
	node *NodeService,
	contacts *store.ContactStore,
	offers *store.OfferStore,
	tracker *ConfirmationTracker,
	meta metadata.Repository,
	log logging.Logger,
) *MessageService {
	return &MessageService{
		source:   source,
		ids:      ids,
		node:     node,
		contacts: contacts,
		offers:   offers,
		tracker:  tracker,
		meta:     meta,
		log:      log,
	}
}

type senderBatch struct {
	address  string
	username string
	msgs     []models.Message
}

// Poll fetches and merges new inbound messages, then reconciles pending
// transfers against the latest block.
func (s *MessageService) Poll(ctx context.Context) error {
	id, ok := s.ids.Identity()
	if !ok {
		return ErrNoIdentity
	}

	inbound, err := s.source.FetchMessages(ctx, id.Address)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	removed, err := s.removedChannels(ctx)
	if err != nil {
		// Without tombstones deleted conversations would reappear.
		return err
	}

	contacts := map[string]*senderBatch{}
	offers := map[string]*senderBatch{}
	for _, in := range inbound {
		if in.SenderAddress == id.Address {
			continue
		}
		key := in.ContactKey()
		if at, ok := removed[key]; ok && !in.CreatedAt.After(at) {
			continue
		}

		target, bkey := contacts, key
		if in.OfferID != "" {
			target, bkey = offers, in.OfferID
		}
		b, ok := target[bkey]
		if !ok {
			b = &senderBatch{address: in.SenderAddress, username: in.SenderName}
			target[bkey] = b
		}
		b.msgs = append(b.msgs, in.Message())
	}

	for key, b := range contacts {
		s.contacts.SetMessages(key, b.address, b.username, b.msgs)
		s.refreshUnread(ctx, key)
	}
	for offerID, b := range offers {
		s.offers.SetMessages(offerID, b.address, b.username, b.msgs)
	}

	applied := s.tracker.Reconcile(ctx, s.node.LatestBlock())
	s.log.Debug(ctx, "messages polled", "fetched", len(inbound), "contacts", len(contacts), "offers", len(offers), "confirmed", len(applied))
	return nil
}

// refreshUnread marks as unread the received messages newer than the
// contact's last-seen time.
func (s *MessageService) refreshUnread(ctx context.Context, key string) {
	c, ok := s.contacts.Contact(key)
	if !ok {
		return
	}
	var ids []string
	for _, m := range c.Messages {
		if m.Outgoing {
			continue
		}
		if c.LastSeen == nil || m.CreatedAt.After(*c.LastSeen) {
			ids = append(ids, m.ID.Key())
		}
	}
	if err := s.contacts.AppendUnread(key, ids); err != nil {
		s.log.Warn(ctx, "update unread failed", "contact", key, "error", err)
	}
}

func (s *MessageService) removedChannels(ctx context.Context) (map[string]time.Time, error) {
	pairs, err := s.meta.ListPrefix(ctx, common.KeyRemovedChannelsPrefix)
	if err != nil {
		return nil, fmt.Errorf("load removed channels: %w", err)
	}
	out := make(map[string]time.Time, len(pairs))
	for k, v := range pairs {
		ns, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			s.log.Warn(ctx, "ignoring malformed tombstone", "key", k, "error", err)
			continue
		}
		out[k[len(common.KeyRemovedChannelsPrefix):]] = time.Unix(0, ns)
	}
	return out, nil
}
