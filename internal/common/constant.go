// Package common contains shared constants and sentinel errors used across
// ledgersync components.
package common

// Keys of the durable vault store. Values are opaque byte strings.
const (
	KeyIdentity      = "identity"
	KeyIsNewUser     = "isNewUser"
	KeyVaultPassword = "vaultPassword"
	KeyIdentitySalt  = "identitySalt"

	// KeyChannelsToRescanPrefix is followed by a channel id, e.g.
	// "channelsToRescan.<address>".
	KeyChannelsToRescanPrefix = "channelsToRescan."

	// KeyRemovedChannelsPrefix is followed by a contact address and holds the
	// unix-nano timestamp at which the conversation was deleted.
	KeyRemovedChannelsPrefix = "removedChannels."
)
