package bsl

// AggregateMode decides when an item counts as "BSL active" room-wide.
type AggregateMode string

const (
	ModeAny AggregateMode = "any" // at least one reporting viewer matched
	ModeAll AggregateMode = "all" // every reporting viewer matched
)

// ClientStatus is the admin-facing view of one viewer's BSL state.
type ClientStatus struct {
	ConnectionID   string         `json:"connectionId"`
	Fingerprint    string         `json:"fingerprint"`
	DisplayName    string         `json:"displayName"`
	FolderSelected bool           `json:"folderSelected"`
	Files          []ClientFile   `json:"files"`
	Matches        map[int]string `json:"matches"`
	Drift          map[int]int    `json:"drift"`
}

// Status is the payload of a bsl-status-update broadcast to the admin.
type Status struct {
	Clients     []ClientStatus   `json:"clients"`
	ActiveItems map[int]bool     `json:"activeItems"`
	Suggestions map[int][]string `json:"suggestions,omitempty"`
	Mode        AggregateMode    `json:"mode"`
}

// BuildStatus consolidates the index, drift table and playlist candidates
// into the admin status view. Suggestions are computed for items no
// reporting viewer matched.
func BuildStatus(ix *Index, drift DriftTable, candidates []Candidate, mode AggregateMode) Status {
	st := Status{
		ActiveItems: make(map[int]bool),
		Suggestions: make(map[int][]string),
		Mode:        mode,
	}

	reporting := 0
	matchedBy := make(map[int]int) // playlist index -> viewers with a match
	ix.Each(func(connID string, cs *ClientState) {
		st.Clients = append(st.Clients, ClientStatus{
			ConnectionID:   connID,
			Fingerprint:    cs.Fingerprint,
			DisplayName:    cs.DisplayName,
			FolderSelected: cs.FolderSelected,
			Files:          cs.Files,
			Matches:        cs.Matches,
			Drift:          drift.Values(cs.Fingerprint),
		})
		if !cs.FolderSelected {
			return
		}
		reporting++
		for idx := range cs.Matches {
			matchedBy[idx]++
		}
	})

	for _, cand := range candidates {
		n := matchedBy[cand.Index]
		switch mode {
		case ModeAll:
			st.ActiveItems[cand.Index] = reporting > 0 && n == reporting
		default:
			st.ActiveItems[cand.Index] = n > 0
		}
		if n == 0 {
			ix.Each(func(_ string, cs *ClientState) {
				if !cs.FolderSelected || len(st.Suggestions[cand.Index]) > 0 {
					return
				}
				if sug := Suggest(cs.Files, cand.Filename, 3); len(sug) > 0 {
					st.Suggestions[cand.Index] = sug
				}
			})
		}
	}
	return st
}
