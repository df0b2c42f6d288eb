package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isUnlocked() bool
	Unlock(ctx context.Context, args []string) error
	Send(ctx context.Context, args []string) error
	Pay(ctx context.Context, args []string) error
	ListContacts(ctx context.Context, args []string) error
	View(ctx context.Context, args []string) error
	Seen(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Alias(ctx context.Context, args []string) error
	StartSync(ctx context.Context, args []string) error
	StopSync(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop.
//
// It reads a line from the provided scanner, parses the first token as the
// command and the rest as its arguments, and dispatches to methods on 'a'.
// The loop exits on scanner EOF, on context cancellation, or when the user
// types "exit" or "quit".
//
// Locked vault:
//
//	help, unlock [name], exit | quit
//
// Unlocked vault:
//
//	help, contacts, view <contact> [limit], send <contact|address> <text>,
//	pay <contact|address> <amount> [memo], seen <contact>, delete <contact>,
//	alias <address> <name>, start, stop, status, exit | quit
//
// Handler errors are printed and never end the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("ls %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var handler func(context.Context, []string) error
		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn("Available commands: contacts, view, send, pay, seen, delete, alias, start, stop, status, exit")
			} else {
				printlnFn("Available commands: unlock, exit")
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		case "unlock":
			handler = a.Unlock
		case "contacts":
			handler = a.ListContacts
		case "view":
			handler = a.View
		case "send":
			handler = a.Send
		case "pay":
			handler = a.Pay
		case "seen":
			handler = a.Seen
		case "delete":
			handler = a.Delete
		case "alias":
			handler = a.Alias
		case "start":
			handler = a.StartSync
		case "stop":
			handler = a.StopSync
		case "status":
			handler = a.Status
		default:
			printlnFn("Unknown command:", cmd)
			continue
		}

		if cmd != "unlock" && !a.isUnlocked() {
			printlnFn("Vault is locked, run 'unlock' first")
			continue
		}
		if err := handler(ctx, args); err != nil {
			printlnFn("Error:", err)
		}
	}
}
