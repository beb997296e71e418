package cache

import (
	"bytes"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	body := []byte("10.0.0.0/8\n192.168.0.0/16\n")
	sig := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := s.Put("nets", body, sig); err != nil {
		t.Fatal(err)
	}

	gotBody, gotSig, ok, err := s.Get("nets")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("record not found")
	}
	if !bytes.Equal(gotBody, body) {
		t.Fatalf("body = %q, want %q", gotBody, body)
	}
	if !bytes.Equal(gotSig, sig) {
		t.Fatalf("sig = %v, want %v", gotSig, sig)
	}
}

func TestPutWithoutSignature(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("m", []byte("body"), nil); err != nil {
		t.Fatal(err)
	}
	body, sig, ok, err := s.Get("m")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(body) != "body" {
		t.Fatalf("body = %q/%v", body, ok)
	}
	if sig != nil {
		t.Fatalf("sig = %v, want nil", sig)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, _, ok, err := s.Get("nope")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("missing record reported present")
	}
}

func TestPutReplaces(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("m", []byte("old"), nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("m", []byte("new"), nil); err != nil {
		t.Fatal(err)
	}
	body, _, _, err := s.Get("m")
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "new" {
		t.Fatalf("body = %q, want new", body)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("m", []byte("body"), nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("m"); err != nil {
		t.Fatal(err)
	}
	_, _, ok, err := s.Get("m")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("deleted record still present")
	}
}

func TestDecodeCorruptRecord(t *testing.T) {
	if _, _, err := decodeRecord([]byte{0x01, 0x02}); err == nil {
		t.Fatal("short record should fail")
	}
	bad := encodeRecordWithMagic(t, 0xBEEF)
	if _, _, err := decodeRecord(bad); err == nil {
		t.Fatal("wrong magic should fail")
	}
}

func encodeRecordWithMagic(t *testing.T, magic uint16) []byte {
	t.Helper()
	rec := make([]byte, headerSize)
	rec[0] = byte(magic >> 8)
	rec[1] = byte(magic)
	return rec
}
