// Package client contains the ledger-facing building blocks of the sync core.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) for the ledger
//     node: GetStatus, GetBalance, GetFreeUtxos, GetConfirmations, Broadcast
//     and FetchMessages.
//  2. A gRPC implementation (see GRPCClient) that announces the caller's
//     ledger address through an interceptor, exchanges structpb payloads with
//     the ledger.v1.LedgerService and maps gRPC status codes to sentinel errors.
//  3. FallbackBroadcaster, which prefers the relay transport and falls back to
//     the ledger node.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations,
//     NewRepositories) wiring SQLite and the embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrNotFound, ErrMalformedResponse.
//
// Concurrency & Contexts
//
// GRPCClient is safe for concurrent use once SetAddress has been called.
// All operations accept context.Context and honor cancellation; timeouts are
// left to the caller.
package client
