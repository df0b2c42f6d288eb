// Package outbox persists queued outbound direct messages so the delivery
// queue survives a restart.
//
// Each Record holds the signed envelope as JSON, the recipient contact key
// and delivery bookkeeping (attempt count and enqueue time). Records are
// returned in enqueue order, which preserves per-recipient FIFO when the
// queue is rebuilt.
//
// SQLiteRepository works over a dbx.DBTX, so it can run inside dbx.WithTx.
package outbox
