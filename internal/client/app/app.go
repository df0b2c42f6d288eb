// Package app wires the client sync core to the ledger node, the local
// database and the terminal UI, and runs them until shutdown.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/ledgersync/internal/client/badge"
	"github.com/dmitrijs2005/ledgersync/internal/client/cli"
	"github.com/dmitrijs2005/ledgersync/internal/client/client"
	"github.com/dmitrijs2005/ledgersync/internal/client/config"
	"github.com/dmitrijs2005/ledgersync/internal/client/faucet"
	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/client/notify"
	"github.com/dmitrijs2005/ledgersync/internal/client/repositories/legacy"
	"github.com/dmitrijs2005/ledgersync/internal/client/services"
	"github.com/dmitrijs2005/ledgersync/internal/client/store"
	"github.com/dmitrijs2005/ledgersync/internal/filex"
	"github.com/dmitrijs2005/ledgersync/internal/logging"
)

type App struct {
	config *config.Config
	logger logging.Logger

	db     *sql.DB
	node   *client.GRPCClient
	relay  *client.GRPCClient
	legacy *legacy.BoltStore

	outbox      *services.Outbox
	coordinator *services.Coordinator
	ui          *cli.App
}

// consoleGuide renders guidance modals as plain text.
type consoleGuide struct {
	w io.Writer
}

func (g consoleGuide) OpenModal(name string) {
	if name == services.RegistrationGuide {
		fmt.Fprintln(g.w, "No vault found, creating a new identity. Keep this device safe: the identity lives only here.")
		return
	}
	fmt.Fprintf(g.w, "[guide] %s\n", name)
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: cfg, logger: logger}
	if err := app.init(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	cfg := app.config

	if !strings.HasPrefix(cfg.DatabasePath, "file:") {
		if _, err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
			return fmt.Errorf("db init error: %w", err)
		}
	}
	db, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	repos := client.NewRepositories(db)

	if app.node, err = client.NewLedgerClient(cfg.NodeEndpointAddr); err != nil {
		return fmt.Errorf("ledger client init error: %w", err)
	}
	transport := client.NewFallbackBroadcaster(app.logger.With("component", "broadcast"))
	if cfg.RelayEndpointAddr != "" {
		if app.relay, err = client.NewLedgerClient(cfg.RelayEndpointAddr); err != nil {
			return fmt.Errorf("relay client init error: %w", err)
		}
		transport.Add("relay", app.relay)
	}
	transport.Add("node", app.node)

	if _, err := filex.EnsureParentDir(cfg.LegacyStorePath); err != nil {
		return fmt.Errorf("legacy store init error: %w", err)
	}
	if app.legacy, err = legacy.Open(cfg.LegacyStorePath); err != nil {
		return fmt.Errorf("legacy store init error: %w", err)
	}

	notes := notify.NewQueue(0)
	contacts := store.NewContactStore(badge.NewMemory(0))
	offers := store.NewOfferStore()

	ids := services.NewIdentityHolder()
	node := services.NewNodeService(app.node, repos.Metadata, app.logger.With("component", "node"))
	wallet := services.NewWalletService(app.node, ids)
	tracker := services.NewConfirmationTracker(app.node, contacts, offers, app.logger.With("component", "tracker"))
	messages := services.NewMessageService(app.node, ids, node, contacts, offers, tracker, repos.Metadata, app.logger.With("component", "messages"))

	app.outbox = services.NewOutbox(services.OutboxConfig{
		MaxAttempts:    cfg.QueueMaxAttempts,
		MaxAge:         cfg.QueueMaxAge,
		RetryBaseDelay: cfg.QueueRetryDelay,
		DrainInterval:  cfg.DrainInterval,
	}, ids, transport, contacts, repos.Outbox, notes, app.logger.With("component", "outbox"))
	if n, err := app.outbox.Restore(ctx); err != nil {
		app.logger.Warn(ctx, "outbox restore failed", "error", err)
	} else if n > 0 {
		app.logger.Info(ctx, "outbox restored", "messages", n)
	}

	var funds services.Faucet
	if cfg.FaucetURL != "" {
		funds = faucet.New(cfg.FaucetURL, cfg.FaucetTimeout)
	}
	vault := services.NewVaultService(
		db, app.legacy, services.KeyIdentityCreator{Legacy: app.legacy}, ids, node,
		funds, consoleGuide{w: os.Stdout}, notes, app.logger.With("component", "vault"),
	)
	if err := vault.LoadVaultStatus(ctx); err != nil {
		app.logger.Warn(ctx, "vault status unavailable", "error", err)
	}

	app.coordinator = services.NewCoordinator(cfg.PollInterval, node, app.logger.With("component", "coordinator"),
		services.Step{Name: "status", Run: node.RefreshStatus},
		services.Step{Name: "balance", Run: wallet.RefreshBalance},
		services.Step{Name: "utxos", Run: wallet.RefreshUtxos},
		services.Step{Name: "messages", Run: messages.Poll},
	)
	// Nothing to poll for until an identity is active.
	app.coordinator.Stop()

	ids.OnChange(func(id models.Identity) {
		app.node.SetAddress(id.Address)
		if app.relay != nil {
			app.relay.SetAddress(id.Address)
		}
		app.coordinator.Start()
	})

	app.ui = cli.NewApp(cli.Deps{
		Vault:    vault,
		Contacts: services.NewContactService(app.outbox, contacts, repos.Metadata, app.logger.With("component", "contacts")),
		Sync:     app.coordinator,
		Node:     node,
		Wallet:   wallet,
		Notes:    notes,
	})
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// watchFailures logs every message the outbox gave up on. The user is told
// through the notification queue.
func (app *App) watchFailures(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-app.outbox.Failed():
			app.logger.Error(ctx, "message not delivered",
				"id", f.Item.ID, "recipient", f.Item.Recipient.ContactKey(),
				"attempts", f.Item.Attempts, "error", f.Err)
		}
	}
}

// Run blocks until the user leaves the REPL or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	defer app.close()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	// The REPL blocks on stdin, so it is left out of the group: a signal
	// must not wait for the next input line.
	go func() {
		app.ui.Run(ctx)
		cancelFunc()
	}()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.coordinator.Run(gCtx) })
	g.Go(func() error { return app.outbox.Run(gCtx) })
	g.Go(func() error { return app.watchFailures(gCtx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (app *App) close() {
	if app.outbox != nil {
		app.outbox.Close()
	}
	var closers []io.Closer
	if app.relay != nil {
		closers = append(closers, app.relay)
	}
	if app.node != nil {
		closers = append(closers, app.node)
	}
	if app.legacy != nil {
		closers = append(closers, app.legacy)
	}
	if app.db != nil {
		closers = append(closers, app.db)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}
