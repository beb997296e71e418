package keysig

import (
	"fmt"
	"os"
)

// Signature is a detached signature: raw 64-byte ed25519 over the message
// digest.
type Signature []byte

// LoadSignature reads a signature file via mmap and returns a copy of its
// contents.
func LoadSignature(path string) (Signature, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading signature: %w", err)
	}
	defer release()

	sig := make(Signature, len(data))
	copy(sig, data)
	return sig, nil
}

// Save writes the signature to path. Unless force is set, an existing file
// is an error rather than silently overwritten.
func (s Signature) Save(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE
	if force {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("creating signature file: %w", err)
	}
	if _, err := f.Write(s); err != nil {
		f.Close()
		return fmt.Errorf("writing signature file: %w", err)
	}
	return f.Close()
}
