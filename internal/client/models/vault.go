package models

// Existence is a tri-state flag: unknown until the vault store was inspected.
type Existence int

const (
	ExistsUnknown Existence = iota
	ExistsNo
	ExistsYes
)

// VaultState is the published state of the vault lifecycle.
type VaultState struct {
	Exists           Existence
	Locked           bool
	Creating         bool
	CreatingIdentity bool
	Unlocking        bool
	IsLogIn          bool
	Error            string
}
