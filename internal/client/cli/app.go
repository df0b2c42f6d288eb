package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/holiman/uint256"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/client/notify"
	"github.com/dmitrijs2005/ledgersync/internal/client/services"
)

// VaultCommands is the vault surface the CLI drives.
type VaultCommands interface {
	UnlockVault(ctx context.Context, req services.UnlockRequest, done func(bool)) error
	State() models.VaultState
	ClearError()
}

// ContactCommands is the conversation surface the CLI drives.
type ContactCommands interface {
	SendDirectMessage(ctx context.Context, req models.SendRequest, redirect bool) (services.QueuedItem, error)
	MarkSeen(ctx context.Context, key string) error
	DeleteChannel(ctx context.Context, key string, at time.Time) error
	LinkUserRedirect(address, nickname string) error
	View(key string, limit int) (models.Page, error)
	Contacts() []models.Contact
}

// SyncControl starts and stops the coordinator loop.
type SyncControl interface {
	Start()
	Stop()
	Running() bool
}

type NodeView interface {
	Status() models.NodeStatus
	InitialLoadComplete() bool
}

type WalletView interface {
	Balance() *uint256.Int
}

// Notifications yields the notifications queued since the last call.
type Notifications interface {
	Drain() []notify.Notification
}

// Deps wires the App to the core services.
type Deps struct {
	Vault    VaultCommands
	Contacts ContactCommands
	Sync     SyncControl
	Node     NodeView
	Wallet   WalletView
	Notes    Notifications
	// PageSize is the number of messages shown by view when no limit is
	// given.
	PageSize int
}

type App struct {
	Deps
	out io.Writer
	now func() time.Time
}

func NewApp(d Deps) *App {
	if d.PageSize <= 0 {
		d.PageSize = 20
	}
	return &App{Deps: d, out: os.Stdout, now: time.Now}
}

func (a *App) isUnlocked() bool {
	return !a.Vault.State().Locked
}

// Run starts the REPL on stdin and blocks until the user exits or stdin
// is closed.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "ledgersync (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}

// getStatus renders the prompt status and flushes pending notifications.
func (a *App) getStatus() string {
	if a.Notes != nil {
		for _, n := range a.Notes.Drain() {
			fmt.Fprintf(a.out, "[%s] %s\n", n.Level, n.Message)
		}
	}

	if !a.isUnlocked() {
		return "(locked)"
	}
	st := a.Node.Status()
	switch {
	case st.IsRescanning:
		return fmt.Sprintf("(rescanning %d/%d)", st.RescanCurrent, st.RescanTarget)
	case !st.Connected:
		return "(offline)"
	case !a.Sync.Running():
		return "(paused)"
	case !a.Node.InitialLoadComplete():
		return "(loading)"
	}
	return fmt.Sprintf("(block %d)", st.LatestBlock)
}
