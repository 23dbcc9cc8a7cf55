package room

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Lakunake/Sync-Player/internal/clock"
)

// PublicRoom is the listing entry exposed for non-private rooms.
type PublicRoom struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Viewers   int       `json:"viewers"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registry owns every live room. Lookup is case-insensitive; codes are
// stored upper-case.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	clk   clock.Clock
}

func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		clk:   clk,
	}
}

// Create makes a new room with a unique code, retrying on the (unlikely)
// collision.
func (reg *Registry) Create(name string, private bool, adminFingerprint string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code := NewCode()
	for _, taken := reg.rooms[code]; taken; _, taken = reg.rooms[code] {
		code = NewCode()
	}

	r := newRoom(code, name, private, adminFingerprint, reg.clk.Now())
	reg.rooms[code] = r
	return r
}

// Find resolves a code case-insensitively.
func (reg *Registry) Find(code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[strings.ToUpper(code)]
	return r, ok
}

// Delete drops a room from the registry. The caller is responsible for
// admin authorization and for notifying viewers first.
func (reg *Registry) Delete(code string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	code = strings.ToUpper(code)
	if _, ok := reg.rooms[code]; !ok {
		return false
	}
	delete(reg.rooms, code)
	return true
}

// ListPublic snapshots the non-private rooms.
func (reg *Registry) ListPublic() []PublicRoom {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]PublicRoom, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		if r.Private {
			continue
		}
		r.Mu.Lock()
		out = append(out, PublicRoom{
			Code:      r.Code,
			Name:      r.Name,
			Viewers:   r.ViewerCount(),
			CreatedAt: r.CreatedAt,
		})
		r.Mu.Unlock()
	}
	return out
}

// All snapshots every live room (for the consolidation ticker).
func (reg *Registry) All() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

// Count returns the number of live rooms.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// RunTicker consolidates every playing room's stored position every 5s so
// it never drifts unboundedly far from real time. The tick itself does not
// broadcast anything.
func (reg *Registry) RunTicker(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := reg.clk.Now()
			for _, r := range reg.All() {
				r.Mu.Lock()
				if r.State.IsPlaying {
					r.State.Consolidate(now)
				}
				r.Mu.Unlock()
			}
		}
	}
}
