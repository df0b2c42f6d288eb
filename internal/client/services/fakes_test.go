package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/ledgersync/internal/cryptox"
)

var errBoom = errors.New("boom")

// fakeLedger implements every read-side source port.
type fakeLedger struct {
	mu sync.Mutex

	status    models.NodeStatus
	statusErr error

	balance    *uint256.Int
	balanceErr error
	utxos      []models.Utxo
	utxosErr   error

	confirmations map[string]int64
	confErr       map[string]error
	confCalls     map[string]int

	inbound  []models.InboundMessage
	fetchErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		confirmations: map[string]int64{},
		confErr:       map[string]error{},
		confCalls:     map[string]int{},
	}
}

func (f *fakeLedger) GetStatus(ctx context.Context) (models.NodeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeLedger) GetBalance(ctx context.Context, address string) (*uint256.Int, error) {
	return f.balance, f.balanceErr
}

func (f *fakeLedger) GetFreeUtxos(ctx context.Context, address string) ([]models.Utxo, error) {
	return f.utxos, f.utxosErr
}

func (f *fakeLedger) GetConfirmations(ctx context.Context, txRef string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confCalls[txRef]++
	if err := f.confErr[txRef]; err != nil {
		return 0, err
	}
	return f.confirmations[txRef], nil
}

func (f *fakeLedger) FetchMessages(ctx context.Context, address string) ([]models.InboundMessage, error) {
	return f.inbound, f.fetchErr
}

func (f *fakeLedger) calls(txRef string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confCalls[txRef]
}

// fakeBroadcaster records delivered envelope ids per recipient address.
// Recipients listed in fail always fail; recipients listed in gate block
// until their channel is closed.
type fakeBroadcaster struct {
	mu        sync.Mutex
	fail      map[string]error
	gate      map[string]chan struct{}
	delivered map[string][]string
	attempts  int
	onSend    func(env models.Envelope)
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{
		fail:      map[string]error{},
		gate:      map[string]chan struct{}{},
		delivered: map[string][]string{},
	}
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, env models.Envelope) (string, error) {
	f.mu.Lock()
	f.attempts++
	gate := f.gate[env.Recipient]
	err := f.fail[env.Recipient]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.delivered[env.Recipient] = append(f.delivered[env.Recipient], env.ID)
	cb := f.onSend
	f.mu.Unlock()
	if cb != nil {
		cb(env)
	}
	return "tx-" + env.ID, nil
}

func (f *fakeBroadcaster) sent(address string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered[address]...)
}

func (f *fakeBroadcaster) setFail(address string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, address)
		return
	}
	f.fail[address] = err
}

// memMeta is an in-memory metadata.Repository.
type memMeta struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
}

func newMemMeta() *memMeta { return &memMeta{data: map[string][]byte{}} }

func (m *memMeta) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *memMeta) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memMeta) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memMeta) List(ctx context.Context) (map[string][]byte, error) {
	return m.ListPrefix(ctx, "")
}

func (m *memMeta) ListPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]byte{}
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (m *memMeta) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = map[string][]byte{}
	return nil
}

// memOutbox is an in-memory outbox.Repository.
type memOutbox struct {
	mu      sync.Mutex
	records []outbox.Record
}

func (m *memOutbox) Save(ctx context.Context, r outbox.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == r.ID {
			m.records[i].Attempts = r.Attempts
			return nil
		}
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memOutbox) ListPending(ctx context.Context) ([]outbox.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]outbox.Record(nil), m.records...), nil
}

func (m *memOutbox) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memOutbox) get(id string) (outbox.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, true
		}
	}
	return outbox.Record{}, false
}

func (m *memOutbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// fakeLegacy is an in-memory LegacyStore.
type fakeLegacy struct {
	data    map[string][]byte
	cleared bool
	hasErr  error
}

func (f *fakeLegacy) Has(ctx context.Context, key string) (bool, error) {
	if f.hasErr != nil {
		return false, f.hasErr
	}
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeLegacy) Get(ctx context.Context, key string) ([]byte, error) {
	return f.data[key], nil
}

func (f *fakeLegacy) Clear(ctx context.Context) error {
	f.data = nil
	f.cleared = true
	return nil
}

// countingCreator wraps KeyIdentityCreator and records every call.
type countingCreator struct {
	inner KeyIdentityCreator
	err   error
	calls []bool
}

func (c *countingCreator) CreateIdentity(ctx context.Context, name string, fromMigration bool) (models.Identity, error) {
	c.calls = append(c.calls, fromMigration)
	if c.err != nil {
		return models.Identity{}, c.err
	}
	return c.inner.CreateIdentity(ctx, name, fromMigration)
}

type fakeFaucet struct {
	err   error
	calls []string
}

func (f *fakeFaucet) RequestFunds(ctx context.Context, address string) error {
	f.calls = append(f.calls, address)
	return f.err
}

type fakeGuide struct{ opened []string }

func (g *fakeGuide) OpenModal(name string) { g.opened = append(g.opened, name) }

// newActiveIdentity returns a holder with a fresh identity set.
func newActiveIdentity(t *testing.T, name string) (*IdentityHolder, models.Identity) {
	t.Helper()
	kp, err := cryptox.NewKeyPair()
	require.NoError(t, err)
	id := models.Identity{
		Name:      name,
		Address:   cryptox.Address(kp.PublicKey),
		PublicKey: kp.PublicKey,
		Seed:      kp.Seed,
	}
	h := NewIdentityHolder()
	h.Set(id)
	return h, id
}
