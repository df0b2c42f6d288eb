// Package cryptox bundles the few primitives the client needs: a password
// based key derivation, AEAD sealing of JSON values, and ed25519 identity
// keys with base58 addresses.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/argon2"
)

var (
	ErrUnsupportedKey = errors.New("cryptox: unsupported private key length")
	ErrBadSignature   = errors.New("cryptox: signature does not verify")
	ErrBadNonce       = errors.New("cryptox: invalid nonce length")
)

// DeriveKey stretches secret with argon2id into a 32-byte AES-256 key.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// Seal serializes v to JSON and encrypts it with AES-GCM under key.
// A fresh 12-byte nonce is generated for every call and returned alongside
// the ciphertext.
func Seal(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open reverses Seal, decoding the plaintext JSON into v.
func Open(ciphertext, nonce, key []byte, v any) error {
	aead, err := newGCM(key)
	if err != nil {
		return err
	}
	if len(nonce) != aead.NonceSize() {
		return ErrBadNonce
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// KeyPair is an ed25519 identity key. Seed is the 32-byte private seed.
type KeyPair struct {
	Seed      []byte
	PublicKey ed25519.PublicKey
}

// NewKeyPair generates a random ed25519 key pair.
func NewKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Seed: priv.Seed(), PublicKey: pub}, nil
}

// KeyPairFromSeed rebuilds a key pair from a previously stored seed.
func KeyPairFromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return KeyPair{}, ErrUnsupportedKey
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return KeyPair{Seed: append([]byte(nil), seed...), PublicKey: priv.Public().(ed25519.PublicKey)}, nil
}

// Address is the ledger address of a public key: its base58 encoding.
func Address(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}

// Sign returns the base58 encoded ed25519 signature of msg.
func Sign(seed []byte, msg []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", ErrUnsupportedKey
	}
	sig := ed25519.Sign(ed25519.NewKeyFromSeed(seed), msg)
	return base58.Encode(sig), nil
}

// Verify checks a signature produced by Sign against the signer's address.
func Verify(address string, msg []byte, sig string) error {
	pub, err := base58.Decode(address)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return ErrUnsupportedKey
	}
	raw, err := base58.Decode(sig)
	if err != nil {
		return ErrBadSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, raw) {
		return ErrBadSignature
	}
	return nil
}
