package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/holiman/uint256"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
)

// WalletService keeps the balance and the free UTXOs of the active identity.
type WalletService struct {
	source WalletSource
	ids    *IdentityHolder

	mu      sync.RWMutex
	balance *uint256.Int
	utxos   []models.Utxo
}

func NewWalletService(source WalletSource, ids *IdentityHolder) *WalletService {
	return &WalletService{source: source, ids: ids, balance: uint256.NewInt(0)}
}

func (w *WalletService) address() (string, error) {
	id, ok := w.ids.Identity()
	if !ok {
		return "", ErrNoIdentity
	}
	return id.Address, nil
}

func (w *WalletService) RefreshBalance(ctx context.Context) error {
	addr, err := w.address()
	if err != nil {
		return err
	}
	b, err := w.source.GetBalance(ctx, addr)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if b == nil {
		b = uint256.NewInt(0)
	}
	w.mu.Lock()
	w.balance = new(uint256.Int).Set(b)
	w.mu.Unlock()
	return nil
}

func (w *WalletService) RefreshUtxos(ctx context.Context) error {
	addr, err := w.address()
	if err != nil {
		return err
	}
	utxos, err := w.source.GetFreeUtxos(ctx, addr)
	if err != nil {
		return fmt.Errorf("get free utxos: %w", err)
	}
	w.mu.Lock()
	w.utxos = slices.Clone(utxos)
	w.mu.Unlock()
	return nil
}

func (w *WalletService) Balance() *uint256.Int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return new(uint256.Int).Set(w.balance)
}

// FreeUtxos returns the spendable fragments and their total value.
func (w *WalletService) FreeUtxos() ([]models.Utxo, *uint256.Int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	total := uint256.NewInt(0)
	out := make([]models.Utxo, len(w.utxos))
	for i, u := range w.utxos {
		out[i] = u
		if u.Value != nil {
			out[i].Value = new(uint256.Int).Set(u.Value)
			total.Add(total, u.Value)
		}
	}
	return out, total
}
