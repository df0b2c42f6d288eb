// Package cli provides the interactive ledgersync command-line client.
//
// The App dispatches user commands into the core services: unlocking the
// vault, sending messages and transfers, reading and deleting
// conversations, and starting or stopping background sync. Notifications
// raised by the core are printed before every prompt.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command list.
package cli
