package maps

import "errors"

var (
	// ErrUnsupported is returned for lookups or operations that the
	// descriptor's backend variant does not support.
	ErrUnsupported = errors.New("unsupported operation for this variant")

	// ErrBadKey is returned when a lookup key cannot be decoded for the
	// backend variant (e.g. an unparseable address for a trie map).
	ErrBadKey = errors.New("malformed key encoding")

	// ErrNoContent is returned by Finalize when a fetch cycle delivered no
	// bytes. The previously committed backend is untouched.
	ErrNoContent = errors.New("no content accumulated for map")

	// ErrEmbedded is returned when a signing key is set on a map that has
	// no live source.
	ErrEmbedded = errors.New("cannot set signing key for embedded map")

	// ErrNoSignature is returned by Finalize when the map requires signed
	// content and the fetch cycle carried no detached signature.
	ErrNoSignature = errors.New("signature required but not provided")

	// ErrBadSignature is returned by Finalize when the detached signature
	// does not verify against the accumulated content.
	ErrBadSignature = errors.New("signature verification failed")

	// ErrBadURI is returned at registration for URIs with an unknown scheme.
	ErrBadURI = errors.New("unsupported map URI")

	// ErrDuplicate is returned when a map name is registered twice.
	ErrDuplicate = errors.New("map already registered")
)
