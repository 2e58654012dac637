package library

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	sealed, err := s.Seal("header.payload.sig")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) || strings.Contains(sealed, "payload") {
		t.Fatalf("sealed value leaks plaintext: %q", sealed)
	}
	got, err := s.Open(sealed)
	if err != nil || got != "header.payload.sig" {
		t.Fatalf("open = %q, %v", got, err)
	}
	if plain, _ := s.Open("not-sealed"); plain != "not-sealed" {
		t.Fatalf("unprefixed value changed: %q", plain)
	}
}

func TestSealerRejectsWrongKey(t *testing.T) {
	a, _ := NewSealer(bytes.Repeat([]byte{1}, 32))
	b, _ := NewSealer(bytes.Repeat([]byte{2}, 32))
	sealed, _ := a.Seal("secret")
	if _, err := b.Open(sealed); err == nil {
		t.Fatalf("expected error opening with another key")
	}
	if _, err := NewSealer([]byte("short")); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestLoadOrCreateSealerPersistsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "session.key")
	first, err := LoadOrCreateSealer(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("key file mode %o, want 600", perm)
	}
	sealed, _ := first.Seal("token")

	second, err := LoadOrCreateSealer(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, err := second.Open(sealed); err != nil || got != "token" {
		t.Fatalf("reloaded key cannot open: %q, %v", got, err)
	}
}
