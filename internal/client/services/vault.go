package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/client/notify"
	"github.com/dmitrijs2005/ledgersync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/ledgersync/internal/common"
	"github.com/dmitrijs2005/ledgersync/internal/cryptox"
	"github.com/dmitrijs2005/ledgersync/internal/dbx"
	"github.com/dmitrijs2005/ledgersync/internal/logging"
)

// RegistrationGuide is the modal shown before a first account is created.
const RegistrationGuide = "registrationGuide"

// UnlockRequest carries the user's unlock input. The vault key is derived
// from the persisted vault secret, so Password is not consulted.
type UnlockRequest struct {
	Name     string
	Password []byte
}

// sealedIdentity is the persisted form of the identity.
type sealedIdentity struct {
	Ciphertext []byte `json:"ct"`
	Nonce      []byte `json:"nonce"`
}

// VaultService drives the vault lifecycle: creation, unlock and migration
// from the legacy store. Only one creation or unlock runs at a time.
type VaultService struct {
	db      *sql.DB
	legacy  LegacyStore
	creator IdentityCreator
	ids     *IdentityHolder
	node    *NodeService
	faucet  Faucet
	guide   Guide
	sink    notify.Sink
	log     logging.Logger

	busy  atomic.Bool
	mu    sync.RWMutex
	state models.VaultState
}

func NewVaultService(
	db *sql.DB,
	legacy LegacyStore,
	creator IdentityCreator,
	ids *IdentityHolder,
	node *NodeService,
	faucet Faucet,
	guide Guide,
	sink notify.Sink,
	log logging.Logger,
) *VaultService {
	return &VaultService{
		db:      db,
		legacy:  legacy,
		creator: creator,
		ids:     ids,
		node:    node,
		faucet:  faucet,
		guide:   guide,
		sink:    sink,
		log:     log,
		state:   models.VaultState{Exists: models.ExistsUnknown, Locked: true},
	}
}

func (v *VaultService) meta() metadata.Repository {
	return metadata.NewSQLiteRepository(v.db)
}

// State returns a snapshot of the vault state.
func (v *VaultService) State() models.VaultState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

func (v *VaultService) update(fn func(s *models.VaultState)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(&v.state)
}

// ClearError resets the error of a failed creation or unlock so the user can
// retry.
func (v *VaultService) ClearError() {
	v.update(func(s *models.VaultState) { s.Error = "" })
}

// LoadVaultStatus inspects the vault store and resolves Exists.
func (v *VaultService) LoadVaultStatus(ctx context.Context) error {
	raw, err := v.meta().Get(ctx, common.KeyIdentity)
	if err != nil {
		return fmt.Errorf("load vault status: %w", err)
	}
	v.update(func(s *models.VaultState) {
		if raw != nil {
			s.Exists = models.ExistsYes
		} else {
			s.Exists = models.ExistsNo
		}
	})
	return nil
}

// CreateVault creates and activates a new identity. With fromMigration set
// the identity is seeded from the legacy store, which is cleared afterwards.
// A faucet failure is reported as a notification and does not fail creation.
func (v *VaultService) CreateVault(ctx context.Context, name string, fromMigration bool) error {
	if !v.busy.CompareAndSwap(false, true) {
		return ErrVaultBusy
	}
	defer v.busy.Store(false)
	return v.createVault(ctx, name, fromMigration)
}

func (v *VaultService) createVault(ctx context.Context, name string, fromMigration bool) error {
	v.update(func(s *models.VaultState) {
		s.Creating = true
		s.Error = ""
	})
	defer v.update(func(s *models.VaultState) {
		s.Creating = false
		s.CreatingIdentity = false
	})

	secret, err := common.MakeRandHexString(32)
	if err != nil {
		return v.fail(ctx, fmt.Errorf("generate vault secret: %w", err))
	}
	if err := v.meta().Set(ctx, common.KeyIsNewUser, []byte("true")); err != nil {
		return v.fail(ctx, fmt.Errorf("persist new user marker: %w", err))
	}

	v.update(func(s *models.VaultState) { s.CreatingIdentity = true })
	id, err := v.creator.CreateIdentity(ctx, name, fromMigration)
	if err != nil {
		return v.fail(ctx, fmt.Errorf("create identity: %w", err))
	}
	defer common.WipeByteArray(id.Seed)

	if err := v.node.RequestRescan(ctx, id.Address); err != nil {
		return v.fail(ctx, err)
	}
	if err := v.persistIdentity(ctx, id, []byte(secret)); err != nil {
		return v.fail(ctx, err)
	}
	v.activate(id)
	v.log.Info(ctx, "vault created", "address", id.Address, "migration", fromMigration)

	if fromMigration {
		if err := v.legacy.Clear(ctx); err != nil {
			v.log.Warn(ctx, "clear legacy store failed", "error", err)
		}
	}
	v.requestFunds(ctx, id.Address)
	return nil
}

// persistIdentity seals id under secret. The secret, its salt and the
// sealed identity are written in one transaction.
func (v *VaultService) persistIdentity(ctx context.Context, id models.Identity, secret []byte) error {
	salt := common.GenerateRandByteArray(16)
	key := cryptox.DeriveKey(secret, salt)
	defer common.WipeByteArray(key)

	ct, nonce, err := cryptox.Seal(id, key)
	if err != nil {
		return fmt.Errorf("seal identity: %w", err)
	}
	raw, err := json.Marshal(sealedIdentity{Ciphertext: ct, Nonce: nonce})
	if err != nil {
		return fmt.Errorf("encode sealed identity: %w", err)
	}

	return dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, common.KeyVaultPassword, secret); err != nil {
			return fmt.Errorf("persist vault secret: %w", err)
		}
		if err := repo.Set(ctx, common.KeyIdentitySalt, salt); err != nil {
			return fmt.Errorf("persist identity salt: %w", err)
		}
		if err := repo.Set(ctx, common.KeyIdentity, raw); err != nil {
			return fmt.Errorf("persist identity: %w", err)
		}
		return nil
	})
}

func (v *VaultService) activate(id models.Identity) {
	v.ids.Set(id)
	v.update(func(s *models.VaultState) {
		s.Exists = models.ExistsYes
		s.Locked = false
	})
}

func (v *VaultService) requestFunds(ctx context.Context, address string) {
	if v.faucet == nil {
		return
	}
	if err := v.faucet.RequestFunds(ctx, address); err != nil {
		v.log.Warn(ctx, "faucet request failed", "address", address, "error", err)
		v.sink.Enqueue(notify.Error("Could not request initial funds. You can retry later."))
		return
	}
	v.sink.Enqueue(notify.Info("Initial funds requested."))
}

// fail records err in the vault state, notifies the user and returns err.
func (v *VaultService) fail(ctx context.Context, err error) error {
	v.log.Error(ctx, "vault operation failed", "error", err)
	v.update(func(s *models.VaultState) {
		s.Error = err.Error()
		if s.Exists != models.ExistsYes {
			s.Exists = models.ExistsNo
		}
	})
	v.sink.Enqueue(notify.Error(err.Error()))
	return err
}

// UnlockVault opens the vault. A legacy identity is migrated into a new
// vault; an empty store shows the registration guide and creates one;
// otherwise the persisted identity is loaded.
//
// done is called with false on entry and with true on return, on every
// path, so a waiting caller is always released.
func (v *VaultService) UnlockVault(ctx context.Context, req UnlockRequest, done func(bool)) error {
	if !v.busy.CompareAndSwap(false, true) {
		return ErrVaultBusy
	}
	defer v.busy.Store(false)

	v.update(func(s *models.VaultState) {
		s.IsLogIn = false
		s.Unlocking = true
	})
	if done != nil {
		done(false)
	}
	defer func() {
		v.update(func(s *models.VaultState) {
			s.IsLogIn = true
			s.Unlocking = false
		})
		if done != nil {
			done(true)
		}
	}()

	if v.hasLegacyIdentity(ctx) {
		return v.createVault(ctx, req.Name, true)
	}

	raw, err := v.meta().Get(ctx, common.KeyIdentity)
	if err != nil {
		return v.fail(ctx, fmt.Errorf("read identity: %w", err))
	}
	if raw == nil {
		if v.guide != nil {
			v.guide.OpenModal(RegistrationGuide)
		}
		return v.createVault(ctx, req.Name, false)
	}
	return v.setVaultIdentity(ctx, raw)
}

func (v *VaultService) hasLegacyIdentity(ctx context.Context) bool {
	if v.legacy == nil {
		return false
	}
	ok, err := v.legacy.Has(ctx, common.KeyIdentity)
	if err != nil {
		v.log.Warn(ctx, "legacy store unreadable", "error", err)
		return false
	}
	return ok
}

// SetVaultIdentity loads the persisted identity and activates it without
// creating a new one.
func (v *VaultService) SetVaultIdentity(ctx context.Context) error {
	raw, err := v.meta().Get(ctx, common.KeyIdentity)
	if err != nil {
		return v.fail(ctx, fmt.Errorf("read identity: %w", err))
	}
	if raw == nil {
		return v.fail(ctx, fmt.Errorf("identity: %w", common.ErrorNotFound))
	}
	return v.setVaultIdentity(ctx, raw)
}

func (v *VaultService) setVaultIdentity(ctx context.Context, raw []byte) error {
	id, err := v.openIdentity(ctx, raw)
	if err != nil {
		return v.fail(ctx, err)
	}
	defer common.WipeByteArray(id.Seed)
	v.activate(id)
	v.log.Info(ctx, "vault unlocked", "address", id.Address)
	return nil
}

func (v *VaultService) openIdentity(ctx context.Context, raw []byte) (models.Identity, error) {
	meta := v.meta()
	secret, err := meta.Get(ctx, common.KeyVaultPassword)
	if err != nil {
		return models.Identity{}, fmt.Errorf("read vault secret: %w", err)
	}
	salt, err := meta.Get(ctx, common.KeyIdentitySalt)
	if err != nil {
		return models.Identity{}, fmt.Errorf("read identity salt: %w", err)
	}
	if secret == nil || salt == nil {
		return models.Identity{}, fmt.Errorf("vault secret: %w", common.ErrorNotFound)
	}

	var sealed sealedIdentity
	if err := json.Unmarshal(raw, &sealed); err != nil {
		return models.Identity{}, fmt.Errorf("decode sealed identity: %w", common.ErrorCorruptData)
	}
	key := cryptox.DeriveKey(secret, salt)
	defer common.WipeByteArray(key)

	var id models.Identity
	if err := cryptox.Open(sealed.Ciphertext, sealed.Nonce, key, &id); err != nil {
		return models.Identity{}, errors.Join(common.ErrorCorruptData, fmt.Errorf("open identity: %w", err))
	}
	return id, nil
}
