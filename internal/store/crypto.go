package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// KeyEnvVar lets the operator supply the memory-file key as a passphrase;
// the key is the SHA-256 of its value.
const KeyEnvVar = "MEMORY_ENCRYPTION_KEY"

const keyFileName = ".memory.key"

// LoadKey resolves the AES-256 key: environment passphrase first, then the
// key file, finally a fresh key written to the file on first boot.
func LoadKey(dataDir string) ([32]byte, error) {
	var key [32]byte

	if pass := os.Getenv(KeyEnvVar); pass != "" {
		key = sha256.Sum256([]byte(pass))
		return key, nil
	}

	path := filepath.Join(dataDir, keyFileName)
	if raw, err := os.ReadFile(path); err == nil {
		if info, err := os.Stat(path); err == nil {
			if perm := info.Mode().Perm(); perm&0o077 != 0 {
				slog.Warn("key file permissions are wider than 0600",
					"path", path, "mode", fmt.Sprintf("%04o", perm))
			}
		}
		decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil || len(decoded) != 32 {
			return key, fmt.Errorf("store: key file %s is corrupt", path)
		}
		copy(key[:], decoded)
		return key, nil
	}

	if _, err := rand.Read(key[:]); err != nil {
		return key, err
	}
	// First boot: the data dir does not exist yet either.
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return key, fmt.Errorf("store: creating data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key[:])+"\n"), 0o600); err != nil {
		return key, fmt.Errorf("store: writing key file: %w", err)
	}
	slog.Info("generated a new memory encryption key; back it up to keep admin identity across machines",
		"path", path)
	return key, nil
}

const gcmTagSize = 16

var errCipherFormat = errors.New("store: malformed ciphertext")

// Encrypt seals plaintext with AES-256-GCM and renders it in the on-disk
// format hex(iv) ":" hex(tag) ":" hex(ciphertext).
func Encrypt(key [32]byte, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt.
func Decrypt(key [32]byte, encoded string) ([]byte, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return nil, errCipherFormat
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, errCipherFormat
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != gcmTagSize {
		return nil, errCipherFormat
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, errCipherFormat
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(iv) != gcm.NonceSize() {
		return nil, errCipherFormat
	}
	return gcm.Open(nil, iv, append(ct, tag...), nil)
}

// LooksEncrypted probes for the iv:tag:ct format (used by the legacy
// whole-file migration).
func LooksEncrypted(s string) bool {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if _, err := hex.DecodeString(p); err != nil || p == "" {
			return false
		}
	}
	return true
}
