package store

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/ledgersync/internal/client/badge"
	"github.com/dmitrijs2005/ledgersync/internal/client/models"
)

type contact struct {
	key      string
	address  string
	username string
	lastSeen *time.Time
	messages *thread
	vault    *thread
	unread   []string
	offerID  string
}

func newContact(key, address, username, offerID string) *contact {
	return &contact{
		key:      key,
		address:  address,
		username: username,
		offerID:  offerID,
		messages: newThread(),
		vault:    newThread(),
	}
}

func (c *contact) snapshot() models.Contact {
	out := models.Contact{
		Key:           c.key,
		Address:       c.address,
		Username:      c.username,
		Messages:      c.messages.list(),
		VaultMessages: c.vault.list(),
		Unread:        slices.Clone(c.unread),
		OfferID:       c.offerID,
	}
	if c.lastSeen != nil {
		ls := *c.lastSeen
		out.LastSeen = &ls
	}
	return out
}

// ContactStore is the per-contact message store. The zero value is not
// usable; construct it with NewContactStore.
type ContactStore struct {
	mu       sync.RWMutex
	contacts map[string]*contact
	badge    badge.Counter
}

func NewContactStore(b badge.Counter) *ContactStore {
	if b == nil {
		b = badge.NewMemory(0)
	}
	return &ContactStore{contacts: make(map[string]*contact), badge: b}
}

// mutate runs fn against an existing contact under the write lock.
func (s *ContactStore) mutate(key string, fn func(c *contact) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrContactNotFound, key)
	}
	return fn(c)
}

// UpsertContact creates the contact if it does not exist yet. For an
// existing key it changes nothing; message history is never truncated.
// It reports whether a contact was created.
func (s *ContactStore) UpsertContact(key, address, username, offerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[key]; ok {
		return false
	}
	s.contacts[key] = newContact(key, address, username, offerID)
	return true
}

// SetMessages merges a batch of messages into the contact's thread,
// creating the contact on first contact with the counterparty.
func (s *ContactStore) SetMessages(key, address, username string, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[key]
	if !ok {
		c = newContact(key, address, username, "")
		s.contacts[key] = c
	}
	for _, m := range msgs {
		c.messages.merge(m)
	}
}

// AddMessage puts a single message into an existing contact's thread.
func (s *ContactStore) AddMessage(key string, m models.Message) error {
	return s.mutate(key, func(c *contact) error {
		c.messages.put(m)
		return nil
	})
}

// RenameMessage swaps the lookup key of a message from its provisional id
// to its ledger reference. Content is untouched, and an unread marker on
// the provisional id follows the message. Renaming to the current key is a
// no-op, as is repeating a rename that already happened.
func (s *ContactStore) RenameMessage(key, tempID, finalID string) error {
	return s.mutate(key, func(c *contact) error {
		if m, ok := c.messages.get(finalID); ok {
			if tempID == finalID || m.ID.Local == tempID {
				return nil
			}
		}

		m, ok := c.messages.get(tempID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, tempID)
		}
		if m.ID.Ledger != "" && m.ID.Ledger != finalID {
			return fmt.Errorf("%w: %s", ErrAlreadyRenamed, m.ID.Ledger)
		}
		if err := c.messages.rename(tempID, finalID); err != nil {
			return err
		}
		if i := slices.Index(c.unread, tempID); i >= 0 {
			c.unread[i] = finalID
		}
		return nil
	})
}

// SetStatus updates the delivery status of one message.
func (s *ContactStore) SetStatus(key, messageID string, status models.DeliveryStatus) error {
	return s.mutate(key, func(c *contact) error {
		m, ok := c.messages.get(messageID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}
		m.Status = status
		return nil
	})
}

// SetBlockTime confirms a pending message of the contact's live thread.
func (s *ContactStore) SetBlockTime(key, messageID string, bt models.BlockTime) error {
	return s.mutate(key, func(c *contact) error {
		return c.messages.setBlockTime(messageID, bt)
	})
}

// SetVaultMessages merges archived messages into the contact's vault thread.
func (s *ContactStore) SetVaultMessages(key string, msgs []models.Message) error {
	return s.mutate(key, func(c *contact) error {
		for _, m := range msgs {
			c.vault.merge(m)
		}
		return nil
	})
}

// SetVaultBlockTime confirms a pending message of the contact's vault thread.
func (s *ContactStore) SetVaultBlockTime(key, messageID string, bt models.BlockTime) error {
	return s.mutate(key, func(c *contact) error {
		return c.vault.setBlockTime(messageID, bt)
	})
}

// CleanUnread empties the unread set and takes its size off the badge.
func (s *ContactStore) CleanUnread(key string) error {
	return s.mutate(key, func(c *contact) error {
		if n := len(c.unread); n > 0 {
			s.badge.Add(-n)
		}
		c.unread = nil
		return nil
	})
}

// AppendUnread replaces the unread set with ids (duplicates dropped) and
// moves the badge by the size difference between the old and new sets.
func (s *ContactStore) AppendUnread(key string, ids []string) error {
	return s.mutate(key, func(c *contact) error {
		next := make([]string, 0, len(ids))
		for _, id := range ids {
			if !slices.Contains(next, id) {
				next = append(next, id)
			}
		}
		if delta := len(next) - len(c.unread); delta != 0 {
			s.badge.Add(delta)
		}
		c.unread = next
		return nil
	})
}

func (s *ContactStore) SetLastSeen(key string, at time.Time) error {
	return s.mutate(key, func(c *contact) error {
		at := at.UTC()
		c.lastSeen = &at
		return nil
	})
}

// RemoveContact deletes the contact entirely. Removing an unknown key is a
// no-op. Tombstones are kept by the caller.
func (s *ContactStore) RemoveContact(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contacts, key)
}

// RebindUsername renames the contact reachable at replyTo and pins its
// address to replyTo.
func (s *ContactStore) RebindUsername(replyTo, username string) error {
	return s.mutate(replyTo, func(c *contact) error {
		c.username = username
		c.address = replyTo
		return nil
	})
}

// Contact returns a snapshot of one contact.
func (s *ContactStore) Contact(key string) (models.Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[key]
	if !ok {
		return models.Contact{}, false
	}
	return c.snapshot(), true
}

// Contacts returns snapshots of all contacts ordered by key.
func (s *ContactStore) Contacts() []models.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// View returns the newest limit messages of a contact's live thread.
func (s *ContactStore) View(key string, limit int) (models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[key]
	if !ok {
		return models.Page{}, fmt.Errorf("%w: %s", ErrContactNotFound, key)
	}
	return c.messages.newest(limit), nil
}

// Unread returns the size of the contact's unread set; zero for unknown keys.
func (s *ContactStore) Unread(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.contacts[key]; ok {
		return len(c.unread)
	}
	return 0
}
