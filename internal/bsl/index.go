// Package bsl implements the "both-side local sync" subsystem: viewers
// report an inventory of locally owned files, the server matches them
// against the room playlist, and matched viewers play their own copy while
// following the shared clock (plus a per-viewer drift offset).
package bsl

// ClientFile is one entry of a viewer's reported folder inventory.
type ClientFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"` // MIME type as reported by the browser, may be empty
}

// ClientState tracks one connection's BSL participation.
type ClientState struct {
	Fingerprint    string         `json:"fingerprint"`
	DisplayName    string         `json:"displayName"`
	FolderSelected bool           `json:"folderSelected"`
	Files          []ClientFile   `json:"files"`
	Matches        map[int]string `json:"matches"` // playlist index -> client filename
}

// Index holds the per-connection BSL state of one room. Callers synchronize
// through the owning room's lock.
type Index struct {
	clients map[string]*ClientState // connection id -> state
}

func NewIndex() *Index {
	return &Index{clients: make(map[string]*ClientState)}
}

// Client returns the state for a connection, creating it on first use.
func (ix *Index) Client(connID string) *ClientState {
	cs, ok := ix.clients[connID]
	if !ok {
		cs = &ClientState{Matches: make(map[int]string)}
		ix.clients[connID] = cs
	}
	return cs
}

// Lookup returns the state for a connection without creating it.
func (ix *Index) Lookup(connID string) (*ClientState, bool) {
	cs, ok := ix.clients[connID]
	return cs, ok
}

// Forget drops a disconnected viewer's state.
func (ix *Index) Forget(connID string) {
	delete(ix.clients, connID)
}

// Each visits every tracked connection.
func (ix *Index) Each(fn func(connID string, cs *ClientState)) {
	for id, cs := range ix.clients {
		fn(id, cs)
	}
}

// HasFolder reports whether a connection has reported a folder. Viewers
// that have are never re-prompted by a refresh.
func (ix *Index) HasFolder(connID string) bool {
	cs, ok := ix.clients[connID]
	return ok && cs.FolderSelected
}
