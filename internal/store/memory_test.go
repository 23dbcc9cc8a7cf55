package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testKey = [32]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
	17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32}

func TestLoadKeyFreshInstall(t *testing.T) {
	// The data dir itself does not exist yet on a first boot.
	dir := filepath.Join(t.TempDir(), "data")

	key, err := LoadKey(dir)
	if err != nil {
		t.Fatalf("fresh install: %v", err)
	}
	if key == [32]byte{} {
		t.Fatal("generated key is all zero")
	}

	info, err := os.Stat(filepath.Join(dir, ".memory.key"))
	if err != nil {
		t.Fatalf("key file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Fatalf("key file mode = %04o, want owner-only", perm)
	}

	// A second boot reads the same key back.
	again, err := LoadKey(dir)
	if err != nil {
		t.Fatal(err)
	}
	if again != key {
		t.Fatal("reloaded key differs from the generated one")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := Encrypt(testKey, []byte("fingerprint-abc"))
	if err != nil {
		t.Fatal(err)
	}
	if parts := strings.Split(enc, ":"); len(parts) != 3 {
		t.Fatalf("ciphertext format %q, want iv:tag:ct", enc)
	}
	if !LooksEncrypted(enc) {
		t.Fatal("LooksEncrypted rejected own output")
	}

	plain, err := Decrypt(testKey, enc)
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != "fingerprint-abc" {
		t.Fatalf("round trip = %q", plain)
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	enc, err := Encrypt(testKey, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(enc, ":")
	// Flip a ciphertext nibble
	ct := []byte(parts[2])
	if ct[0] == 'a' {
		ct[0] = 'b'
	} else {
		ct[0] = 'a'
	}
	tampered := parts[0] + ":" + parts[1] + ":" + string(ct)
	if _, err := Decrypt(testKey, tampered); err == nil {
		t.Fatal("tampered ciphertext decrypted")
	}
}

func TestLooksEncrypted(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"aabb:ccdd:eeff", true},
		{"not encrypted", false},
		{"{\"json\": true}", false},
		{"aabb:ccdd", false},
		{"zzzz:ccdd:eeff", false},
	}
	for _, tt := range tests {
		if got := LooksEncrypted(tt.in); got != tt.want {
			t.Errorf("LooksEncrypted(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")

	m, err := OpenMemory(path, testKey)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetAdminFingerprint("fp-admin"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetClientName("fp-1", "Alice"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetMatch("fp-1", "My File.MKV", "Server File.mkv"); err != nil {
		t.Fatal(err)
	}

	// Reopen and verify persistence
	m2, err := OpenMemory(path, testKey)
	if err != nil {
		t.Fatal(err)
	}
	fp, err := m2.AdminFingerprint()
	if err != nil || fp != "fp-admin" {
		t.Fatalf("admin fingerprint = %q, %v", fp, err)
	}
	if name, ok := m2.ClientName("fp-1"); !ok || name != "Alice" {
		t.Fatalf("client name = %q, %v", name, ok)
	}
	if got := m2.Matches("fp-1")["my file.mkv"]; got != "server file.mkv" {
		t.Fatalf("match memory = %q, want lowercase pair", got)
	}
}

func TestMemoryAdminFingerprintEncryptedAtRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	m, err := OpenMemory(path, testKey)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetAdminFingerprint("fp-secret"); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "fp-secret") {
		t.Fatal("admin fingerprint stored in plaintext")
	}
}

func TestMemoryLegacyMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")

	legacy, err := json.Marshal(map[string]any{
		"adminFingerprint": "fp-old",
		"clientNames":      map[string]string{"fp-2": "Bob"},
	})
	if err != nil {
		t.Fatal(err)
	}
	blob, err := Encrypt(testKey, legacy)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(blob), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := OpenMemory(path, testKey)
	if err != nil {
		t.Fatal(err)
	}
	fp, err := m.AdminFingerprint()
	if err != nil || fp != "fp-old" {
		t.Fatalf("migrated fingerprint = %q, %v", fp, err)
	}
	if name, ok := m.ClientName("fp-2"); !ok || name != "Bob" {
		t.Fatalf("migrated name = %q", name)
	}

	// File must now be in the split format
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if LooksEncrypted(strings.TrimSpace(string(raw))) {
		t.Fatal("file still in legacy whole-blob format after migration")
	}
}

func TestMemoryCorruptFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := os.WriteFile(path, []byte("not json at all {{{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenMemory(path, testKey); err == nil {
		t.Fatal("corrupt memory file accepted")
	}
}

func TestRoomAdminsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room-admins.json")
	ra, err := OpenRoomAdmins(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ra.Save("abcd12", "fp-x", time.Now()); err != nil {
		t.Fatal(err)
	}

	ra2, err := OpenRoomAdmins(path)
	if err != nil {
		t.Fatal(err)
	}
	if fp, ok := ra2.Lookup("ABCD12"); !ok || fp != "fp-x" {
		t.Fatalf("lookup = %q, %v (codes must be case-insensitive)", fp, ok)
	}
	if err := ra2.Delete("abcd12"); err != nil {
		t.Fatal(err)
	}
	if _, ok := ra2.Lookup("ABCD12"); ok {
		t.Fatal("record survived delete")
	}
}
