package keysig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("10.0.0.0/8\n192.168.0.0/16\n")

	sig, err := Sign(priv, msg)
	if err != nil {
		t.Fatal(err)
	}
	if !Verify(pub, sig, msg) {
		t.Fatal("signature should verify")
	}
}

func TestVerifyTamperedMessage(t *testing.T) {
	pub, priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := Sign(priv, []byte("original"))
	if err != nil {
		t.Fatal(err)
	}
	if Verify(pub, sig, []byte("tampered")) {
		t.Fatal("tampered message must not verify")
	}
}

func TestVerifyMismatchedKey(t *testing.T) {
	_, priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	otherPub, _, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := Sign(priv, []byte("message"))
	if err != nil {
		t.Fatal(err)
	}
	if Verify(otherPub, sig, []byte("message")) {
		t.Fatal("wrong key must not verify")
	}
}

func TestVerifyGarbageSignature(t *testing.T) {
	pub, _, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	if Verify(pub, Signature("short"), []byte("message")) {
		t.Fatal("truncated signature must not verify")
	}
}

func TestSignVerifyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.txt")
	content := []byte("example.com trusted\nexample.org blocked\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	pub, priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := SignFile(priv, path)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := VerifyFile(pub, sig, path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("file signature should verify")
	}
	// File-backed signing matches in-memory signing of the same bytes.
	if !Verify(pub, sig, content) {
		t.Fatal("file and memory signatures should agree")
	}

	if err := os.WriteFile(path, []byte("changed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	ok, err = VerifyFile(pub, sig, path)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("modified file must not verify")
	}
}

func TestVerifyFileMissing(t *testing.T) {
	pub, priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := Sign(priv, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyFile(pub, sig, filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected I/O error for missing file")
	}
}
