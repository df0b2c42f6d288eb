package models

// Identity is the user's ledger identity. Seed is the ed25519 private seed
// and never leaves the vault unencrypted.
type Identity struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	PublicKey []byte `json:"public_key"`
	Seed      []byte `json:"seed"`
}
