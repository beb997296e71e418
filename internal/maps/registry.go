package maps

import (
	"fmt"
	"net/url"
	"os"
	"sync"

	"refmap/internal/backend"
	"refmap/internal/keysig"
)

// ContentCache persists the last successfully committed body (and its
// detached signature, when the map is signed) per map name, so a restart can
// serve data before the first fetch completes. The bbolt implementation
// lives in internal/cache.
type ContentCache interface {
	Get(name string) (body, sig []byte, ok bool, err error)
	Put(name string, body, sig []byte) error
}

// Options carries optional registration parameters.
type Options struct {
	Description string
	// TrustedKey gates content on signature verification when non-empty
	// (any encoding keysig.LoadPublicKey accepts).
	TrustedKey string
	// Handler must be set for callback maps that want content delivered;
	// it can also be registered later via SetHandler.
	Handler Handler
}

// Registry tracks registered maps and implements the contract consumed by
// the external fetch driver: register once per configured map, then drive
// Deliver/Finalize per fetch cycle through the returned handle.
type Registry struct {
	mu    sync.Mutex
	maps  map[string]*Descriptor
	cache ContentCache // may be nil
}

// NewRegistry creates a registry. cache may be nil to disable content
// caching.
func NewRegistry(cache ContentCache) *Registry {
	return &Registry{
		maps:  make(map[string]*Descriptor),
		cache: cache,
	}
}

// Handle is the fetch driver's reference to one registered map.
type Handle struct {
	d *Descriptor
	r *Registry
}

// Descriptor returns the map descriptor for lookups and metadata.
func (h *Handle) Descriptor() *Descriptor { return h.d }

// NewCycle starts a fetch cycle.
func (h *Handle) NewCycle() *Cycle { return h.d.NewCycle() }

// Deliver appends one chunk to the cycle.
func (h *Handle) Deliver(cy *Cycle, chunk []byte) { h.d.Deliver(cy, chunk) }

// Abort discards the cycle.
func (h *Handle) Abort(cy *Cycle) { h.d.Abort(cy) }

// Finalize commits the cycle and, on success, writes the body back to the
// content cache. Cache failures are logged, never propagated: availability
// fails open.
func (h *Handle) Finalize(cy *Cycle) error {
	var body, sig []byte
	if h.r.cache != nil && cy.acc != nil {
		body = append([]byte(nil), cy.acc.buf.Bytes()...)
		sig = cy.sig
	}

	if err := h.d.Finalize(cy); err != nil {
		return err
	}

	if h.r.cache != nil && body != nil {
		if err := h.r.cache.Put(h.d.name, body, sig); err != nil {
			logger.Warn("caching map content failed", "map", h.d.name, "err", err)
		}
	}
	return nil
}

// Register creates a descriptor for a fetched map and returns the driver
// handle. The URI must be a local path, file://, http:// or https://; an
// unreadable file source or an unknown scheme aborts registration. When a
// content cache is configured and holds a previous body for this name, it
// is committed through the normal cycle path (including signature gating)
// before Register returns.
func (r *Registry) Register(name, uri string, kind backend.Kind, opts Options) (*Handle, error) {
	proto, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		name:        name,
		uri:         uri,
		description: opts.Description,
		proto:       proto,
		kind:        kind,
		handler:     opts.Handler,
	}
	if opts.TrustedKey != "" {
		if err := d.SetSignKey(opts.TrustedKey); err != nil {
			return nil, fmt.Errorf("map %s: %w", name, err)
		}
	}

	r.mu.Lock()
	if _, exists := r.maps[name]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.maps[name] = d
	r.mu.Unlock()

	h := &Handle{d: d, r: r}
	r.seedFromCache(h)
	logger.Info("map registered", "map", name, "uri", d.URI(), "type", kind.String())
	return h, nil
}

// Lookup returns a registered map's descriptor by name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.maps[name]
	return d, ok
}

// NewEmbedded builds a map populated entirely from in-process content. It
// never fetches and never accepts a trusted key. Callback maps cannot be
// embedded: there is no fetch cycle to hand content over.
func NewEmbedded(name, description string, kind backend.Kind, content []byte) (*Descriptor, error) {
	if kind == backend.KindCallback {
		return nil, fmt.Errorf("%w: callback maps cannot be embedded", ErrUnsupported)
	}
	d := &Descriptor{
		name:        name,
		description: description,
		proto:       ProtoEmbedded,
		kind:        kind,
	}
	if err := d.commitBody(content, "embedded"); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Registry) seedFromCache(h *Handle) {
	if r.cache == nil {
		return
	}
	body, sig, ok, err := r.cache.Get(h.d.name)
	if err != nil {
		logger.Warn("reading map cache failed", "map", h.d.name, "err", err)
		return
	}
	if !ok {
		return
	}
	cy := h.d.NewCycle()
	h.d.Deliver(cy, body)
	cy.AttachSignature(keysig.Signature(sig))
	if err := h.d.Finalize(cy); err != nil {
		logger.Warn("cached map content rejected", "map", h.d.name, "err", err)
		return
	}
	logger.Info("map seeded from cache", "map", h.d.name, "bytes", len(body))
}

func parseURI(uri string) (Protocol, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadURI, err)
	}
	switch u.Scheme {
	case "http", "https":
		return ProtoHTTP, nil
	case "file", "":
		path := u.Path
		if u.Scheme == "" {
			path = uri
		}
		if _, err := os.Stat(path); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBadURI, err)
		}
		return ProtoFile, nil
	default:
		return 0, fmt.Errorf("%w: scheme %q", ErrBadURI, u.Scheme)
	}
}
