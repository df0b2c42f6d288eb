// Package store holds the process-wide conversation state of the client:
// per-contact message threads with their unread bookkeeping, and the
// message threads of marketplace offers.
//
// All state is reachable only through the methods of ContactStore and
// OfferStore. Reads return deep copies; mutations go through the action
// methods, which keep the invariants below:
//
//   - a thread holds at most one message per key (MessageID.Key); putting a
//     message under an existing key overwrites it in place;
//   - a message is renamed from its provisional id to its ledger reference
//     at most once;
//   - a confirmed block time is never reverted or changed;
//   - the unread badge moves by the delta between the old and new unread
//     set sizes, never by absolute values.
//
// Mutating a contact or offer that does not exist returns ErrContactNotFound
// or ErrOfferNotFound and leaves the state untouched.
package store
