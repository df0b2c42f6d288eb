package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/client/services"
	"github.com/dmitrijs2005/ledgersync/internal/common"
)

// getPassword is an indirection used to facilitate testing.
var getPassword = GetPassword

var errUsage = errors.New("invalid arguments")

func usage(format string) error {
	return fmt.Errorf("%w, usage: %s", errUsage, format)
}

// Unlock reads the password and opens the vault, creating one on first use.
// An optional argument names the identity of a new vault.
func (a *App) Unlock(ctx context.Context, args []string) error {
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	req := services.UnlockRequest{Password: password}
	if len(args) > 0 {
		req.Name = args[0]
	}

	a.Vault.ClearError()
	err = a.Vault.UnlockVault(ctx, req, func(ok bool) {
		if !ok {
			fmt.Fprintln(a.out, "Unlocking...")
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Vault unlocked")
	return nil
}

// Send queues a plain message and shows the conversation.
func (a *App) Send(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("send <contact|address> <text>")
	}
	msg := models.OutgoingMessage{Type: models.MessageTypePlain, Data: strings.Join(args[1:], " ")}
	return a.send(ctx, args[0], msg)
}

// Pay queues a value transfer with an optional memo.
func (a *App) Pay(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("pay <contact|address> <amount> [memo]")
	}
	amount, err := uint256.FromDecimal(args[1])
	if err != nil {
		return fmt.Errorf("amount %q: %w", args[1], err)
	}
	msg := models.OutgoingMessage{
		Type:  models.MessageTypeTransfer,
		Data:  strings.Join(args[2:], " "),
		Spent: amount,
	}
	return a.send(ctx, args[0], msg)
}

func (a *App) send(ctx context.Context, target string, msg models.OutgoingMessage) error {
	req := models.SendRequest{Message: msg, Receiver: models.Recipient{Address: target}}
	item, err := a.Contacts.SendDirectMessage(ctx, req, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Queued %s\n", item.ID)
	if item.Redirect {
		return a.printThread(item.Recipient.ContactKey(), a.PageSize)
	}
	return nil
}

// ListContacts prints every contact with its unread count.
func (a *App) ListContacts(ctx context.Context, args []string) error {
	contacts := a.Contacts.Contacts()
	if len(contacts) == 0 {
		fmt.Fprintln(a.out, "No contacts")
		return nil
	}
	for _, c := range contacts {
		name := c.Username
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(a.out, "%s\t%s\t%s\tunread: %d\n", c.Key, name, c.Address, len(c.Unread))
	}
	return nil
}

// View prints the newest messages of a conversation.
func (a *App) View(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("view <contact> [limit]")
	}
	limit := a.PageSize
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return usage("view <contact> [limit]")
		}
		limit = n
	}
	return a.printThread(args[0], limit)
}

func (a *App) printThread(key string, limit int) error {
	page, err := a.Contacts.View(key, limit)
	if err != nil {
		return err
	}
	if page.HasMore {
		fmt.Fprintf(a.out, "... older messages hidden, try: view %s %d\n", key, limit*2)
	}
	for _, m := range page.Messages {
		fmt.Fprintln(a.out, formatMessage(m))
	}
	return nil
}

func formatMessage(m models.Message) string {
	dir := "<"
	if m.Outgoing {
		dir = ">"
	}
	block := "pending"
	if h, ok := m.BlockTime.Height(); ok {
		block = "block " + strconv.FormatInt(h, 10)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s [%s, %s]", m.CreatedAt.Format("2006-01-02 15:04"), dir, m.Type, m.Status, block)
	if m.Type == models.MessageTypeTransfer && m.Spent != nil {
		fmt.Fprintf(&b, " %s", m.Spent.Dec())
	}
	if m.Payload != "" {
		fmt.Fprintf(&b, " %s", m.Payload)
	}
	return b.String()
}

// Seen marks a conversation as read.
func (a *App) Seen(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("seen <contact>")
	}
	return a.Contacts.MarkSeen(ctx, args[0])
}

// Delete removes a conversation.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("delete <contact>")
	}
	if err := a.Contacts.DeleteChannel(ctx, args[0], a.now()); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}

// Alias sets the display name of the contact reached at an address.
func (a *App) Alias(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("alias <address> <name>")
	}
	return a.Contacts.LinkUserRedirect(args[0], args[1])
}

func (a *App) StartSync(ctx context.Context, args []string) error {
	a.Sync.Start()
	fmt.Fprintln(a.out, "Sync started")
	return nil
}

func (a *App) StopSync(ctx context.Context, args []string) error {
	a.Sync.Stop()
	fmt.Fprintln(a.out, "Sync stopped")
	return nil
}

// Status prints node, wallet and sync state.
func (a *App) Status(ctx context.Context, args []string) error {
	st := a.Node.Status()
	fmt.Fprintf(a.out, "connected: %t\n", st.Connected)
	fmt.Fprintf(a.out, "latest block: %d\n", st.LatestBlock)
	if st.IsRescanning {
		fmt.Fprintf(a.out, "rescanning: %d/%d\n", st.RescanCurrent, st.RescanTarget)
	}
	fmt.Fprintf(a.out, "sync running: %t\n", a.Sync.Running())
	fmt.Fprintf(a.out, "balance: %s\n", a.Wallet.Balance().Dec())
	if e := a.Vault.State().Error; e != "" {
		fmt.Fprintf(a.out, "vault error: %s\n", e)
	}
	return nil
}
