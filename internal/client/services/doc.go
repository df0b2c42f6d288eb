// Package services implements the client sync core on top of the stores and
// the ledger adapter.
//
//   - IdentityHolder keeps the unlocked identity and signs envelopes.
//   - NodeService and WalletService poll node status, balance and free UTXOs.
//   - MessageService fetches inbound messages and merges them into the stores.
//   - ConfirmationTracker resolves the block time of pending transfers.
//   - Outbox queues outbound direct messages per recipient and delivers them.
//   - Coordinator runs the polling steps on a fixed cadence.
//   - VaultService creates, migrates and unlocks the vault.
//   - ContactService exposes the contact commands issued by the UI.
//
// Services own their state; callers read it through accessor methods that
// return copies.
package services
