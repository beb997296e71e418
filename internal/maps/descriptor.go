// Package maps implements the map engine: named reference datasets refreshed
// through a chunked-accumulation, atomic-commit fetch protocol and queried
// through a unified descriptor facade. The external fetch driver owns
// scheduling, retries, and freshness; this package owns accumulation,
// optional signature gating, parsing, and the atomic swap that makes a new
// dataset visible.
package maps

import (
	"fmt"
	"net/netip"
	"sync"

	"refmap/internal/backend"
	"refmap/internal/keysig"
	"refmap/internal/logging"
)

var logger = logging.For("maps")

// Protocol tags how a map's content reaches the engine.
type Protocol int

const (
	ProtoFile Protocol = iota
	ProtoHTTP
	ProtoEmbedded
)

func (p Protocol) String() string {
	switch p {
	case ProtoFile:
		return "file"
	case ProtoHTTP:
		return "http"
	case ProtoEmbedded:
		return "embedded"
	}
	return "undefined"
}

// Handler consumes a callback map's finalized content. The byte slice is
// borrowed: it stays valid until the handler returns and until the map's
// next successful commit, whichever comes first. Handlers that need the
// bytes longer must copy.
type Handler func(d *Descriptor, data []byte)

// Descriptor is one named map: identity, variant, trust configuration, and
// the currently committed backend. A single fetch cycle may be in flight at
// a time (guaranteed by the driver); lookups may run concurrently with each
// other and with an in-flight cycle, and only ever observe fully committed
// snapshots.
type Descriptor struct {
	name        string
	uri         string
	description string
	proto       Protocol
	kind        backend.Kind

	mu      sync.RWMutex
	backend backend.Backend
	trusted keysig.PublicKey
	handler Handler
}

// Name returns the map's configured name.
func (d *Descriptor) Name() string { return d.name }

// Description returns the human description.
func (d *Descriptor) Description() string { return d.description }

// Kind returns the backend variant.
func (d *Descriptor) Kind() backend.Kind { return d.kind }

// Protocol returns the map's source protocol tag.
func (d *Descriptor) Protocol() Protocol { return d.proto }

// URI returns the source URI, or "embedded" for embedded maps.
func (d *Descriptor) URI() string {
	if d.proto == ProtoEmbedded {
		return "embedded"
	}
	return d.uri
}

// IsSigned reports whether content must pass signature verification before
// being committed.
func (d *Descriptor) IsSigned() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.trusted.Valid()
}

// SignKey returns the trusted public key as base32, or false when none is
// configured. Embedded maps never carry one.
func (d *Descriptor) SignKey() (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.trusted.Valid() {
		return "", false
	}
	return d.trusted.Encode(), true
}

// SetSignKey installs a trusted public key, replacing any previous one
// atomically. The encoded form is anything keysig.LoadPublicKey accepts.
// Fails for embedded maps and for malformed or invalid key material.
func (d *Descriptor) SetSignKey(encoded string) error {
	if d.proto == ProtoEmbedded {
		return ErrEmbedded
	}
	pk, err := keysig.LoadPublicKey([]byte(encoded))
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.trusted = pk
	d.mu.Unlock()
	logger.Info("trusted key set", "map", d.name, "key", pk.Encode())
	return nil
}

// SetHandler registers the consumer handler for a callback map. Fails for
// the other variants.
func (d *Descriptor) SetHandler(h Handler) error {
	if d.kind != backend.KindCallback {
		return fmt.Errorf("%w: %s map cannot take a handler", ErrUnsupported, d.kind)
	}
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
	return nil
}

func (d *Descriptor) snapshot() backend.Backend {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.backend
}

// Contains answers a presence query. For trie maps the key must parse as an
// IP address; for set maps it is a token. Table and callback maps do not
// support presence queries.
func (d *Descriptor) Contains(key string) (bool, error) {
	switch b := d.snapshot().(type) {
	case nil:
		return false, nil // nothing committed yet
	case *backend.Trie:
		addr, err := netip.ParseAddr(key)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBadKey, err)
		}
		return b.ContainsAddr(addr), nil
	case *backend.Set:
		return b.Contains(key), nil
	default:
		return false, fmt.Errorf("%w: presence query on %s map", ErrUnsupported, d.kind)
	}
}

// ContainsAddr performs a longest-prefix containment query on a trie map.
func (d *Descriptor) ContainsAddr(addr netip.Addr) (bool, error) {
	switch b := d.snapshot().(type) {
	case nil:
		return false, nil
	case *backend.Trie:
		return b.ContainsAddr(addr), nil
	default:
		return false, fmt.Errorf("%w: address query on %s map", ErrUnsupported, d.kind)
	}
}

// ContainsNum queries a trie map with an IPv4 address given as a host-order
// number; it is converted to network byte order first.
func (d *Descriptor) ContainsNum(n uint32) (bool, error) {
	switch b := d.snapshot().(type) {
	case nil:
		return false, nil
	case *backend.Trie:
		return b.ContainsNum(n), nil
	default:
		return false, fmt.Errorf("%w: address query on %s map", ErrUnsupported, d.kind)
	}
}

// Get returns the value stored for key in a key/value map, case-insensitively.
func (d *Descriptor) Get(key string) (string, bool, error) {
	switch b := d.snapshot().(type) {
	case nil:
		return "", false, nil
	case *backend.Table:
		v, ok := b.Get(key)
		return v, ok, nil
	default:
		return "", false, fmt.Errorf("%w: value query on %s map", ErrUnsupported, d.kind)
	}
}

// Deliver appends one chunk of fetched content to the cycle. The first
// chunk of a cycle allocates the accumulator.
func (d *Descriptor) Deliver(cy *Cycle, chunk []byte) {
	if cy.acc == nil {
		cy.acc = &Accumulator{}
		logger.Debug("fetch cycle started", "map", d.name, "cycle", cy.id)
	}
	cy.acc.Append(chunk)
}

// Abort discards the cycle's accumulator without touching the committed
// backend. Used when the driver gives up on a fetch before finalize.
func (d *Descriptor) Abort(cy *Cycle) {
	if cy.acc != nil {
		logger.Debug("fetch cycle aborted", "map", d.name, "cycle", cy.id, "bytes", cy.acc.Len())
		cy.acc = nil
	}
}

// Finalize ends the cycle: verify (when a trusted key is configured), parse,
// and atomically swap the new backend in. On any error the previously
// committed backend stays untouched. Not safe for concurrent calls on the
// same descriptor; the driver serializes cycles.
func (d *Descriptor) Finalize(cy *Cycle) error {
	if cy.acc == nil || cy.acc.Len() == 0 {
		logger.Warn("fetch cycle produced no content, keeping previous data",
			"map", d.name, "cycle", cy.id)
		cy.acc = nil
		return ErrNoContent
	}

	body := cy.acc.take()
	cy.acc = nil

	if d.IsSigned() {
		if len(cy.sig) == 0 {
			return fmt.Errorf("%w: map %s", ErrNoSignature, d.name)
		}
		d.mu.RLock()
		trusted := d.trusted
		d.mu.RUnlock()
		if !keysig.Verify(trusted, cy.sig, body) {
			return fmt.Errorf("%w: map %s", ErrBadSignature, d.name)
		}
	}

	return d.commitBody(body, cy.id)
}

// commitBody parses a complete body for the descriptor's variant and swaps
// the result in. The swap under the write lock is the only mutation a
// reader can ever observe.
func (d *Descriptor) commitBody(body []byte, cycleID string) error {
	var (
		b  backend.Backend
		st backend.ParseStats
	)
	switch d.kind {
	case backend.KindTrie:
		b, st = backend.ParseTrie(body)
	case backend.KindSet:
		b, st = backend.ParseSet(body)
	case backend.KindTable:
		b, st = backend.ParseTable(body)
	case backend.KindCallback:
		return d.commitCallback(body, cycleID)
	default:
		return fmt.Errorf("%w: unknown variant %d", ErrUnsupported, d.kind)
	}

	d.mu.Lock()
	d.backend = b
	d.mu.Unlock()

	logger.Info("map committed", "map", d.name, "cycle", cycleID,
		"records", st.Records, "skipped", st.Skipped)
	if st.Skipped > 0 {
		logger.Debug("malformed records skipped", "map", d.name, "skipped", st.Skipped)
	}
	return nil
}

func (d *Descriptor) commitCallback(body []byte, cycleID string) error {
	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()

	if h == nil {
		// Not fatal: the consumer may register its handler later; this
		// cycle's content is dropped.
		logger.Warn("callback map has no handler, discarding content",
			"map", d.name, "cycle", cycleID, "bytes", len(body))
		return nil
	}

	cb := backend.NewCallback(body)
	d.mu.Lock()
	d.backend = cb
	d.mu.Unlock()

	// Handoff: the handler borrows the buffer until it returns. The buffer
	// is released no earlier than the next successful commit, which the
	// driver cannot start before this call completes.
	h(d, cb.Bytes())

	logger.Info("map committed", "map", d.name, "cycle", cycleID, "bytes", len(body))
	return nil
}
