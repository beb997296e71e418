package maps

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"refmap/internal/backend"
	"refmap/internal/keysig"
)

// memCache is an in-memory ContentCache for tests.
type memCache struct {
	bodies map[string][]byte
	sigs   map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{bodies: make(map[string][]byte), sigs: make(map[string][]byte)}
}

func (c *memCache) Get(name string) ([]byte, []byte, bool, error) {
	body, ok := c.bodies[name]
	return body, c.sigs[name], ok, nil
}

func (c *memCache) Put(name string, body, sig []byte) error {
	c.bodies[name] = append([]byte(nil), body...)
	c.sigs[name] = append([]byte(nil), sig...)
	return nil
}

func writeTempMap(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "map.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegisterFileAndHTTP(t *testing.T) {
	r := NewRegistry(nil)
	path := writeTempMap(t, "example.com\n")

	h, err := r.Register("local", path, backend.KindSet, Options{Description: "local set"})
	if err != nil {
		t.Fatal(err)
	}
	if h.Descriptor().Protocol() != ProtoFile {
		t.Fatalf("Protocol = %v, want file", h.Descriptor().Protocol())
	}

	h2, err := r.Register("remote", "https://example.org/nets.txt", backend.KindTrie, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if h2.Descriptor().Protocol() != ProtoHTTP {
		t.Fatalf("Protocol = %v, want http", h2.Descriptor().Protocol())
	}

	if _, ok := r.Lookup("local"); !ok {
		t.Fatal("registered map not found by name")
	}
}

func TestRegisterBadURI(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.Register("m", "ftp://example.org/x", backend.KindSet, Options{}); !errors.Is(err, ErrBadURI) {
		t.Fatalf("unknown scheme: err = %v, want ErrBadURI", err)
	}
	if _, err := r.Register("m", "/does/not/exist", backend.KindSet, Options{}); !errors.Is(err, ErrBadURI) {
		t.Fatalf("missing file: err = %v, want ErrBadURI", err)
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	r := NewRegistry(nil)
	path := writeTempMap(t, "x\n")

	if _, err := r.Register("dup", path, backend.KindSet, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register("dup", path, backend.KindSet, Options{}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestRegisterInvalidTrustedKey(t *testing.T) {
	r := NewRegistry(nil)
	path := writeTempMap(t, "x\n")

	if _, err := r.Register("m", path, backend.KindSet, Options{TrustedKey: "garbage!!"}); err == nil {
		t.Fatal("invalid trusted key should abort registration")
	}
}

func TestFinalizeWritesBackToCache(t *testing.T) {
	c := newMemCache()
	r := NewRegistry(c)
	path := writeTempMap(t, "ignored\n")

	h, err := r.Register("m", path, backend.KindSet, Options{})
	if err != nil {
		t.Fatal(err)
	}

	cy := h.NewCycle()
	h.Deliver(cy, []byte("example.com\n"))
	if err := h.Finalize(cy); err != nil {
		t.Fatal(err)
	}

	if string(c.bodies["m"]) != "example.com\n" {
		t.Fatalf("cached body = %q", c.bodies["m"])
	}
}

func TestRegisterSeedsFromCache(t *testing.T) {
	c := newMemCache()
	c.bodies["m"] = []byte("cached.example\n")
	r := NewRegistry(c)
	path := writeTempMap(t, "ignored\n")

	h, err := r.Register("m", path, backend.KindSet, Options{})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := h.Descriptor().Contains("cached.example")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("descriptor should be seeded from the cache")
	}
}

func TestSeedRejectsUnverifiedCache(t *testing.T) {
	pub, _, err := keysig.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	c := newMemCache()
	c.bodies["m"] = []byte("cached.example\n") // no signature stored
	r := NewRegistry(c)
	path := writeTempMap(t, "ignored\n")

	h, err := r.Register("m", path, backend.KindSet, Options{TrustedKey: pub.Encode()})
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := h.Descriptor().Contains("cached.example"); ok {
		t.Fatal("unsigned cached content must not seed a signed map")
	}
}

func TestSeedAcceptsSignedCache(t *testing.T) {
	pub, priv, err := keysig.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	body := []byte("cached.example\n")
	sig, err := keysig.Sign(priv, body)
	if err != nil {
		t.Fatal(err)
	}
	c := newMemCache()
	c.bodies["m"] = body
	c.sigs["m"] = sig
	r := NewRegistry(c)
	path := writeTempMap(t, "ignored\n")

	h, err := r.Register("m", path, backend.KindSet, Options{TrustedKey: pub.Encode()})
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := h.Descriptor().Contains("cached.example"); !ok {
		t.Fatal("signed cached content should seed the map")
	}
}

func TestNewEmbeddedCallbackRejected(t *testing.T) {
	if _, err := NewEmbedded("cb", "", backend.KindCallback, []byte("x")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestEmbeddedLookup(t *testing.T) {
	d, err := NewEmbedded("nets", "internal nets", backend.KindTrie, []byte("10.0.0.0/8\n"))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := d.Contains("10.1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("embedded trie should answer lookups immediately")
	}
}
