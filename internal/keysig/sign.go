package keysig

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

var ErrNoKey = errors.New("no key material")

// Sign produces a detached signature over the blake2b-256 digest of msg.
func Sign(priv PrivateKey, msg []byte) (Signature, error) {
	if !priv.Valid() {
		return nil, ErrNoKey
	}
	digest := blake2b.Sum256(msg)
	return Signature(ed25519.Sign(priv.key, digest[:])), nil
}

// Verify checks a detached signature over msg. A mismatched signature is an
// expected outcome and returns false; only absent key material is an error
// condition, reported as false as well since there is nothing to verify with.
func Verify(pub PublicKey, sig Signature, msg []byte) bool {
	if !pub.Valid() || len(sig) != ed25519.SignatureSize {
		return false
	}
	digest := blake2b.Sum256(msg)
	return ed25519.Verify(pub.key, digest[:], sig)
}

// SignFile signs the contents of a file. The file is mapped for reading, so
// memory use stays bounded regardless of file size.
func SignFile(priv PrivateKey, path string) (Signature, error) {
	if !priv.Valid() {
		return nil, ErrNoKey
	}
	data, release, err := mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("signing %s: %w", path, err)
	}
	defer release()
	return Sign(priv, data)
}

// VerifyFile verifies a detached signature against the contents of a file.
// The returned error covers I/O failures only; a mismatched signature is
// (false, nil).
func VerifyFile(pub PublicKey, sig Signature, path string) (bool, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return false, fmt.Errorf("verifying %s: %w", path, err)
	}
	defer release()
	return Verify(pub, sig, data), nil
}
