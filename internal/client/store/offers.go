package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
)

type offer struct {
	id       string
	address  string
	username string
	messages *thread
}

// OfferStore keeps the message threads attached to marketplace offers.
type OfferStore struct {
	mu     sync.RWMutex
	offers map[string]*offer
}

func NewOfferStore() *OfferStore {
	return &OfferStore{offers: make(map[string]*offer)}
}

// UpsertOffer creates the offer thread if needed; an existing offer is kept.
func (s *OfferStore) UpsertOffer(id, address, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offers[id]; !ok {
		s.offers[id] = &offer{id: id, address: address, username: username, messages: newThread()}
	}
}

// SetMessages merges messages into an offer thread, creating it if needed.
func (s *OfferStore) SetMessages(id, address, username string, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[id]
	if !ok {
		o = &offer{id: id, address: address, username: username, messages: newThread()}
		s.offers[id] = o
	}
	for _, m := range msgs {
		o.messages.merge(m)
	}
}

func (s *OfferStore) SetMessageBlockTime(id, messageID string, bt models.BlockTime) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOfferNotFound, id)
	}
	return o.messages.setBlockTime(messageID, bt)
}

func (s *OfferStore) Offer(id string) (models.Offer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return models.Offer{}, false
	}
	return models.Offer{ID: o.id, Address: o.address, Username: o.username, Messages: o.messages.list()}, true
}

// Offers returns snapshots of all offers ordered by id.
func (s *OfferStore) Offers() []models.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Offer, 0, len(s.offers))
	for _, o := range s.offers {
		out = append(out, models.Offer{ID: o.id, Address: o.address, Username: o.username, Messages: o.messages.list()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
