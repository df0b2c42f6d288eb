package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ledgersync/internal/client/client"
	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/client/notify"
	"github.com/dmitrijs2005/ledgersync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/ledgersync/internal/common"
	"github.com/dmitrijs2005/ledgersync/internal/cryptox"
	"github.com/dmitrijs2005/ledgersync/internal/logging"
)

func newVaultDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), "file:vault-"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type vaultFixture struct {
	vault   *VaultService
	db      *sql.DB
	meta    metadata.Repository
	ids     *IdentityHolder
	node    *NodeService
	legacy  *fakeLegacy
	creator *countingCreator
	faucet  *fakeFaucet
	guide   *fakeGuide
	sink    *notify.Queue
}

func newVaultFixture(t *testing.T, db *sql.DB) *vaultFixture {
	t.Helper()
	f := &vaultFixture{
		db:     db,
		meta:   metadata.NewSQLiteRepository(db),
		ids:    NewIdentityHolder(),
		legacy: &fakeLegacy{data: map[string][]byte{}},
		faucet: &fakeFaucet{},
		guide:  &fakeGuide{},
		sink:   notify.NewQueue(16),
	}
	f.creator = &countingCreator{inner: KeyIdentityCreator{Legacy: f.legacy}}
	f.node = NewNodeService(newFakeLedger(), f.meta, logging.Discard())
	f.vault = NewVaultService(db, f.legacy, f.creator, f.ids, f.node, f.faucet, f.guide, f.sink, logging.Discard())
	return f
}

func (f *vaultFixture) metaValue(t *testing.T, key string) []byte {
	t.Helper()
	v, err := f.meta.Get(context.Background(), key)
	require.NoError(t, err)
	return v
}

func TestVault_UnlockEmptyStoreCreatesVault(t *testing.T) {
	ctx := context.Background()
	f := newVaultFixture(t, newVaultDB(t))
	f.faucet.err = errBoom

	assert.Equal(t, models.VaultState{Exists: models.ExistsUnknown, Locked: true}, f.vault.State())

	var done []bool
	err := f.vault.UnlockVault(ctx, UnlockRequest{Name: "neo", Password: []byte("ignored")}, func(ok bool) { done = append(done, ok) })
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true}, done)
	assert.Equal(t, []string{RegistrationGuide}, f.guide.opened)
	assert.Equal(t, []bool{false}, f.creator.calls)

	st := f.vault.State()
	assert.True(t, st.IsLogIn)
	assert.Equal(t, models.ExistsYes, st.Exists)
	assert.False(t, st.Locked)
	assert.False(t, st.Creating)
	assert.False(t, st.CreatingIdentity)
	assert.False(t, st.Unlocking)
	assert.Empty(t, st.Error)

	id, ok := f.ids.Identity()
	require.True(t, ok)
	assert.Equal(t, "neo", id.Name)
	assert.Nil(t, id.Seed)

	assert.Equal(t, []byte("true"), f.metaValue(t, common.KeyIsNewUser))
	assert.Len(t, f.metaValue(t, common.KeyVaultPassword), 64)
	assert.NotEmpty(t, f.metaValue(t, common.KeyIdentitySalt))
	assert.NotNil(t, f.metaValue(t, common.KeyChannelsToRescanPrefix+id.Address))
	assert.True(t, f.node.IsRescanning())

	// The persisted identity is sealed, never plain JSON with a seed.
	raw := f.metaValue(t, common.KeyIdentity)
	var sealed sealedIdentity
	require.NoError(t, json.Unmarshal(raw, &sealed))
	assert.NotEmpty(t, sealed.Ciphertext)
	assert.NotContains(t, string(raw), id.Address)

	// Faucet failure is only a notification.
	assert.Equal(t, []string{id.Address}, f.faucet.calls)
	notes := f.sink.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelError, notes[0].Level)
}

func TestVault_UnlockLoadsPersistedIdentity(t *testing.T) {
	ctx := context.Background()
	db := newVaultDB(t)

	first := newVaultFixture(t, db)
	require.NoError(t, first.vault.CreateVault(ctx, "neo", false))
	created, _ := first.ids.Identity()

	second := newVaultFixture(t, db)
	require.NoError(t, second.vault.LoadVaultStatus(ctx))
	assert.Equal(t, models.ExistsYes, second.vault.State().Exists)

	var done []bool
	require.NoError(t, second.vault.UnlockVault(ctx, UnlockRequest{}, func(ok bool) { done = append(done, ok) }))

	assert.Equal(t, []bool{false, true}, done)
	assert.Empty(t, second.guide.opened)
	assert.Empty(t, second.creator.calls)
	assert.Empty(t, second.faucet.calls)

	loaded, ok := second.ids.Identity()
	require.True(t, ok)
	assert.Equal(t, created, loaded)
	assert.True(t, second.vault.State().IsLogIn)
	assert.False(t, second.vault.State().Locked)
}

func TestVault_UnlockMigratesLegacyIdentity(t *testing.T) {
	ctx := context.Background()
	f := newVaultFixture(t, newVaultDB(t))

	kp, err := cryptox.NewKeyPair()
	require.NoError(t, err)
	raw, err := json.Marshal(legacyIdentity{Name: "old-name", Seed: kp.Seed})
	require.NoError(t, err)
	f.legacy.data[common.KeyIdentity] = raw

	require.NoError(t, f.vault.UnlockVault(ctx, UnlockRequest{Name: "ignored"}, nil))

	assert.Equal(t, []bool{true}, f.creator.calls)
	assert.Empty(t, f.guide.opened)
	assert.True(t, f.legacy.cleared)

	id, ok := f.ids.Identity()
	require.True(t, ok)
	assert.Equal(t, cryptox.Address(kp.PublicKey), id.Address)
	assert.Equal(t, "old-name", id.Name)
	assert.False(t, f.vault.State().Locked)
}

func TestVault_CreateFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	f := newVaultFixture(t, newVaultDB(t))
	f.creator.err = errBoom

	var done []bool
	err := f.vault.UnlockVault(ctx, UnlockRequest{}, func(ok bool) { done = append(done, ok) })
	require.ErrorIs(t, err, errBoom)

	// The caller is released even on failure.
	assert.Equal(t, []bool{false, true}, done)

	st := f.vault.State()
	assert.True(t, st.IsLogIn)
	assert.Equal(t, models.ExistsNo, st.Exists)
	assert.True(t, st.Locked)
	assert.Contains(t, st.Error, "boom")
	assert.Nil(t, f.metaValue(t, common.KeyIdentity))
	_, ok := f.ids.Identity()
	assert.False(t, ok)

	notes := f.sink.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelError, notes[0].Level)

	f.vault.ClearError()
	assert.Empty(t, f.vault.State().Error)
}

func TestVault_FailedMigrationKeepsExistingVault(t *testing.T) {
	ctx := context.Background()
	db := newVaultDB(t)

	first := newVaultFixture(t, db)
	require.NoError(t, first.vault.CreateVault(ctx, "neo", false))
	created, _ := first.ids.Identity()
	secret := first.metaValue(t, common.KeyVaultPassword)

	second := newVaultFixture(t, db)
	second.legacy.data[common.KeyIdentity] = []byte(`{"name":"old"}`)
	second.creator.err = errBoom

	require.ErrorIs(t, second.vault.UnlockVault(ctx, UnlockRequest{}, nil), errBoom)
	assert.Equal(t, []bool{true}, second.creator.calls)
	assert.Equal(t, secret, second.metaValue(t, common.KeyVaultPassword))

	second.creator.err = nil
	second.vault.ClearError()
	require.NoError(t, second.vault.SetVaultIdentity(ctx))
	loaded, ok := second.ids.Identity()
	require.True(t, ok)
	assert.Equal(t, created, loaded)
}

func TestVault_RejectsConcurrentOperations(t *testing.T) {
	f := newVaultFixture(t, newVaultDB(t))
	f.vault.busy.Store(true)

	called := false
	err := f.vault.UnlockVault(context.Background(), UnlockRequest{}, func(bool) { called = true })
	require.ErrorIs(t, err, ErrVaultBusy)
	assert.False(t, called)

	require.ErrorIs(t, f.vault.CreateVault(context.Background(), "x", false), ErrVaultBusy)
}

func TestVault_LoadVaultStatus(t *testing.T) {
	ctx := context.Background()
	f := newVaultFixture(t, newVaultDB(t))

	require.NoError(t, f.vault.LoadVaultStatus(ctx))
	assert.Equal(t, models.ExistsNo, f.vault.State().Exists)
}

func TestVault_SetVaultIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		f := newVaultFixture(t, newVaultDB(t))
		err := f.vault.SetVaultIdentity(ctx)
		require.ErrorIs(t, err, common.ErrorNotFound)
		assert.NotEmpty(t, f.vault.State().Error)
	})

	t.Run("corrupt", func(t *testing.T) {
		f := newVaultFixture(t, newVaultDB(t))
		require.NoError(t, f.vault.CreateVault(ctx, "neo", false))
		require.NoError(t, f.meta.Set(ctx, common.KeyIdentity, []byte(`{"ct":"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","nonce":"AAAAAAAAAAAAAAAA"}`)))

		err := f.vault.SetVaultIdentity(ctx)
		require.ErrorIs(t, err, common.ErrorCorruptData)
	})
}
