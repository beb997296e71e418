// Package keysig implements the signing primitive trusted by the map engine:
// ed25519 over a blake2b-256 digest of the message. The digest and signature
// algorithms are fixed constants, not negotiated — only this module's own
// tooling (cmd/mapsign) produces and consumes compatible signatures.
package keysig

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base32"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"filippo.io/edwards25519"
)

// AlgName identifies the fixed hash/signature pairing. It is informational:
// signatures carry no algorithm field.
const AlgName = "ed25519-blake2b256"

var (
	ErrMalformedEncoding = errors.New("malformed key encoding")
	ErrInvalidPubkey     = errors.New("invalid pubkey material")
	ErrInvalidPrivkey    = errors.New("invalid private key material")
)

// keyEncoding is unpadded base32, accepted case-insensitively.
var keyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// PublicKey is the public half of a signing keypair.
type PublicKey struct {
	key ed25519.PublicKey
}

// PrivateKey is the private half of a signing keypair.
type PrivateKey struct {
	key ed25519.PrivateKey
}

// GenerateKey creates a fresh signing keypair.
func GenerateKey() (PublicKey, PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return PublicKey{}, PrivateKey{}, fmt.Errorf("generating keypair: %w", err)
	}
	return PublicKey{key: pub}, PrivateKey{key: priv}, nil
}

// LoadPublicKey parses public key material from an in-memory buffer.
// Accepted encodings: PEM (PKIX, "PUBLIC KEY" block) or unpadded base32 of
// the raw 32-byte key. Base32 keys are additionally checked to be canonical
// curve points, so garbage that happens to be 32 bytes is rejected here
// rather than failing every later verification.
func LoadPublicKey(data []byte) (PublicKey, error) {
	if block, _ := pem.Decode(data); block != nil {
		rawKey, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
		}
		pub, ok := rawKey.(ed25519.PublicKey)
		if !ok {
			return PublicKey{}, fmt.Errorf("%w: not an ed25519 key", ErrInvalidPubkey)
		}
		return PublicKey{key: pub}, nil
	}

	return decodeBase32Pubkey(strings.TrimSpace(string(data)))
}

// LoadPublicKeyFile reads and parses a public key from a file.
func LoadPublicKeyFile(path string) (PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PublicKey{}, fmt.Errorf("reading public key: %w", err)
	}
	return LoadPublicKey(data)
}

func decodeBase32Pubkey(s string) (PublicKey, error) {
	raw, err := keyEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("%w: got %d bytes, want %d",
			ErrInvalidPubkey, len(raw), ed25519.PublicKeySize)
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	return PublicKey{key: ed25519.PublicKey(raw)}, nil
}

// LoadPrivateKey parses a PEM-encoded (PKCS8) ed25519 private key.
func LoadPrivateKey(data []byte) (PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return PrivateKey{}, fmt.Errorf("%w: no PEM block found", ErrMalformedEncoding)
	}
	rawKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("%w: %v", ErrInvalidPrivkey, err)
	}
	priv, ok := rawKey.(ed25519.PrivateKey)
	if !ok {
		return PrivateKey{}, fmt.Errorf("%w: not an ed25519 key", ErrInvalidPrivkey)
	}
	return PrivateKey{key: priv}, nil
}

// LoadPrivateKeyFile reads and parses a private key from a file.
func LoadPrivateKeyFile(path string) (PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("reading private key: %w", err)
	}
	return LoadPrivateKey(data)
}

// Valid reports whether the key holds material.
func (p PublicKey) Valid() bool { return len(p.key) == ed25519.PublicKeySize }

// Valid reports whether the key holds material.
func (p PrivateKey) Valid() bool { return len(p.key) == ed25519.PrivateKeySize }

// Public returns the public half of the private key.
func (p PrivateKey) Public() PublicKey {
	return PublicKey{key: p.key.Public().(ed25519.PublicKey)}
}

// Encode returns the raw public key as lowercase unpadded base32, the form
// map configurations carry trusted keys in.
func (p PublicKey) Encode() string {
	return strings.ToLower(keyEncoding.EncodeToString(p.key))
}

// EncodePEM returns the public key as a PKIX PEM block.
func (p PublicKey) EncodePEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(p.key)
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// EncodePEM returns the private key as a PKCS8 PEM block.
func (p PrivateKey) EncodePEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(p.key)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
