package store

import (
	"fmt"
	"slices"
	"sort"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
)

// thread is an insertion-ordered message collection keyed by MessageID.Key.
type thread struct {
	order []string
	byKey map[string]*models.Message
}

func newThread() *thread {
	return &thread{byKey: make(map[string]*models.Message)}
}

func (t *thread) get(key string) (*models.Message, bool) {
	m, ok := t.byKey[key]
	return m, ok
}

// put stores m under its key, overwriting an existing record in place.
func (t *thread) put(m models.Message) {
	key := m.ID.Key()
	m = m.Clone()
	if _, ok := t.byKey[key]; !ok {
		t.order = append(t.order, key)
	}
	t.byKey[key] = &m
}

// merge is put for records coming back from the ledger: a confirmed block
// time and the local delivery state of an existing record survive.
func (t *thread) merge(m models.Message) {
	if cur, ok := t.byKey[m.ID.Key()]; ok {
		if !cur.BlockTime.IsPending() {
			m.BlockTime = cur.BlockTime
		}
		if cur.Outgoing {
			m.Outgoing = true
			if m.Status == "" || m.Status == models.StatusReceived {
				m.Status = cur.Status
			}
		}
		if m.ID.Local == "" {
			m.ID.Local = cur.ID.Local
		}
	}
	t.put(m)
}

// rename moves the record stored under from to the key to.
func (t *thread) rename(from, to string) error {
	m, ok := t.byKey[from]
	if !ok {
		return ErrMessageNotFound
	}
	if _, taken := t.byKey[to]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, to)
	}
	m.ID.Ledger = to
	delete(t.byKey, from)
	t.byKey[to] = m
	t.order[slices.Index(t.order, from)] = to
	return nil
}

func (t *thread) list() []models.Message {
	out := make([]models.Message, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.byKey[key].Clone())
	}
	return out
}

// newest returns up to limit of the latest messages by creation time,
// oldest first. limit <= 0 returns everything.
func (t *thread) newest(limit int) models.Page {
	msgs := t.list()
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	if limit <= 0 || len(msgs) <= limit {
		return models.Page{Messages: msgs}
	}
	return models.Page{Messages: msgs[len(msgs)-limit:], HasMore: true}
}

// setBlockTime confirms a pending record. Confirmed records and pending
// inputs are left alone.
func (t *thread) setBlockTime(key string, bt models.BlockTime) error {
	m, ok := t.byKey[key]
	if !ok {
		return ErrMessageNotFound
	}
	if !m.BlockTime.IsPending() || bt.IsPending() {
		return nil
	}
	m.BlockTime = bt
	return nil
}
