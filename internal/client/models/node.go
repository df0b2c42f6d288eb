package models

import "github.com/holiman/uint256"

// NodeStatus is the ledger node state polled by the coordinator.
type NodeStatus struct {
	Connected    bool
	LatestBlock  int64
	IsRescanning bool
	// RescanCurrent and RescanTarget drive the rescan progress indicator.
	RescanCurrent int64
	RescanTarget  int64
}

// Utxo is a spendable value fragment of the wallet.
type Utxo struct {
	TxID          string
	Index         uint32
	Value         *uint256.Int
	Confirmations int64
}
