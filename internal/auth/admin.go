// Package auth covers admin identity (first-admin fingerprint lock, the
// in-process verified set) and CSRF protection for the HTTP surface.
package auth

import (
	"log/slog"
	"sync"

	"github.com/Lakunake/Sync-Player/internal/store"
)

// Admins tracks which connections have proven admin identity. With the
// fingerprint lock enabled, the first fingerprint ever registered is
// persisted (encrypted) and every later mismatch is rejected.
type Admins struct {
	mu       sync.Mutex
	verified map[string]bool // connection ids
	lock     bool
	mem      *store.Memory
}

func NewAdmins(mem *store.Memory, lockEnabled bool) *Admins {
	return &Admins{
		verified: make(map[string]bool),
		lock:     lockEnabled,
		mem:      mem,
	}
}

// Register attempts admin registration for a connection. Returns false
// with a reason when the fingerprint lock rejects the device.
func (a *Admins) Register(connID, fingerprint string) (bool, string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lock && fingerprint != "" {
		saved, err := a.mem.AdminFingerprint()
		if err != nil {
			slog.Error("cannot read persisted admin fingerprint", "error", err)
			return false, "Internal error verifying device"
		}
		switch {
		case saved == "":
			// First admin wins
			if err := a.mem.SetAdminFingerprint(fingerprint); err != nil {
				slog.Error("cannot persist admin fingerprint", "error", err)
				return false, "Internal error saving device"
			}
		case saved != fingerprint:
			return false, "Unauthorized device: this server is locked to its first admin"
		}
	}

	a.verified[connID] = true
	return true, ""
}

// Verified reports whether a connection has admin identity.
func (a *Admins) Verified(connID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verified[connID]
}

// Drop forgets a connection (on disconnect).
func (a *Admins) Drop(connID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.verified, connID)
}
