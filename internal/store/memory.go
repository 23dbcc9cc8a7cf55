// Package store is the flat-file persistence layer: the encrypted memory
// file (admin fingerprint, client names, BSL match memory), the per-room
// admin table, and the tail-capped JSON event logs.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// memoryDoc is the on-disk layout of the memory file.
type memoryDoc struct {
	Encrypted   string                       `json:"encrypted"` // admin fingerprint, AES-256-GCM
	ClientNames map[string]string            `json:"clientNames"`
	BslMatches  map[string]map[string]string `json:"bslMatches"` // fp -> client file (lc) -> playlist file (lc)
}

// legacyDoc is the pre-split format: the whole document was one encrypted
// blob. Detected by a format probe and migrated on first load.
type legacyDoc struct {
	AdminFingerprint string                       `json:"adminFingerprint"`
	ClientNames      map[string]string            `json:"clientNames"`
	BslMatches       map[string]map[string]string `json:"bslMatches"`
}

// Memory is the single memory file. Every mutation rewrites the whole
// document atomically (temp file + rename).
type Memory struct {
	mu   sync.Mutex
	path string
	key  [32]byte
	doc  memoryDoc
}

// ErrCorrupt means the memory file is unreadable beyond migration; the
// caller should treat this as fatal rather than silently starting fresh.
var ErrCorrupt = errors.New("store: memory file corrupt")

func OpenMemory(path string, key [32]byte) (*Memory, error) {
	m := &Memory{
		path: path,
		key:  key,
		doc: memoryDoc{
			ClientNames: make(map[string]string),
			BslMatches:  make(map[string]map[string]string),
		},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(string(raw))
	if LooksEncrypted(text) {
		// Legacy format: one encrypted JSON blob
		plain, err := Decrypt(key, text)
		if err != nil {
			return nil, fmt.Errorf("%w: legacy blob does not decrypt", ErrCorrupt)
		}
		var old legacyDoc
		if err := json.Unmarshal(plain, &old); err != nil {
			return nil, fmt.Errorf("%w: legacy payload is not JSON", ErrCorrupt)
		}
		if old.ClientNames != nil {
			m.doc.ClientNames = old.ClientNames
		}
		if old.BslMatches != nil {
			m.doc.BslMatches = old.BslMatches
		}
		if old.AdminFingerprint != "" {
			enc, err := Encrypt(key, []byte(old.AdminFingerprint))
			if err != nil {
				return nil, err
			}
			m.doc.Encrypted = enc
		}
		// Persist in the split format right away
		if err := m.save(); err != nil {
			return nil, err
		}
		return m, nil
	}

	if err := json.Unmarshal(raw, &m.doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if m.doc.ClientNames == nil {
		m.doc.ClientNames = make(map[string]string)
	}
	if m.doc.BslMatches == nil {
		m.doc.BslMatches = make(map[string]map[string]string)
	}
	return m, nil
}

// AdminFingerprint decrypts the stored admin fingerprint ("" when unset).
func (m *Memory) AdminFingerprint() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc.Encrypted == "" {
		return "", nil
	}
	plain, err := Decrypt(m.key, m.doc.Encrypted)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// SetAdminFingerprint encrypts and persists the first-admin fingerprint.
func (m *Memory) SetAdminFingerprint(fp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	enc, err := Encrypt(m.key, []byte(fp))
	if err != nil {
		return err
	}
	m.doc.Encrypted = enc
	return m.save()
}

func (m *Memory) ClientName(fingerprint string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.doc.ClientNames[fingerprint]
	return name, ok
}

func (m *Memory) SetClientName(fingerprint, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.ClientNames[fingerprint] = name
	return m.save()
}

// Matches returns a copy of one fingerprint's persisted BSL match memory,
// keyed lowercase client filename -> lowercase playlist filename.
func (m *Memory) Matches(fingerprint string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.doc.BslMatches[fingerprint]))
	for k, v := range m.doc.BslMatches[fingerprint] {
		out[k] = v
	}
	return out
}

// SetMatch remembers a confirmed client-file to playlist-file mapping.
func (m *Memory) SetMatch(fingerprint, clientFile, playlistFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fpMap, ok := m.doc.BslMatches[fingerprint]
	if !ok {
		fpMap = make(map[string]string)
		m.doc.BslMatches[fingerprint] = fpMap
	}
	fpMap[strings.ToLower(clientFile)] = strings.ToLower(playlistFile)
	return m.save()
}

// save rewrites the whole document atomically. Caller holds m.mu.
func (m *Memory) save() error {
	data, err := json.MarshalIndent(m.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}
