package playlist

import "encoding/json"

// Playlist is the ordered queue a room plays through. CurrentIndex may be
// -1 ("idle", nothing selected); MainItemIndex is a preload hint for
// clients and follows the same domain.
type Playlist struct {
	Items             []Item  `json:"items"`
	CurrentIndex      int     `json:"currentIndex"`
	MainItemIndex     int     `json:"mainItemIndex"`
	MainItemStartTime float64 `json:"mainItemStartTime"`
}

func New() *Playlist {
	return &Playlist{CurrentIndex: -1, MainItemIndex: -1}
}

func (p *Playlist) Len() int { return len(p.Items) }

// InRange reports whether i addresses an existing item.
func (p *Playlist) InRange(i int) bool {
	return i >= 0 && i < len(p.Items)
}

// Current returns the item at CurrentIndex, or nil when idle.
func (p *Playlist) Current() *Item {
	if !p.InRange(p.CurrentIndex) {
		return nil
	}
	return &p.Items[p.CurrentIndex]
}

// Replace swaps in a new item list. Items that fail to decode upstream are
// already gone by this point; indices are re-clamped to the new length.
func (p *Playlist) Replace(items []Item, mainIndex int, startTime float64) {
	p.Items = items
	p.MainItemStartTime = startTime
	if len(items) == 0 {
		p.CurrentIndex = -1
		p.MainItemIndex = -1
		return
	}
	p.CurrentIndex = 0
	if mainIndex < -1 || mainIndex >= len(items) {
		mainIndex = -1
	}
	p.MainItemIndex = mainIndex
}

// Swap exchanges the items at a and b and fixes up CurrentIndex and
// MainItemIndex if they pointed at either slot.
func (p *Playlist) Swap(a, b int) bool {
	if !p.InRange(a) || !p.InRange(b) || a == b {
		return false
	}
	p.Items[a], p.Items[b] = p.Items[b], p.Items[a]
	switch p.CurrentIndex {
	case a:
		p.CurrentIndex = b
	case b:
		p.CurrentIndex = a
	}
	switch p.MainItemIndex {
	case a:
		p.MainItemIndex = b
	case b:
		p.MainItemIndex = a
	}
	return true
}

// DecodeItems decodes a raw wire playlist, silently dropping entries whose
// shape does not match either variant.
func DecodeItems(raw []json.RawMessage) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		var it Item
		if err := it.UnmarshalJSON(r); err != nil {
			continue
		}
		items = append(items, it)
	}
	return items
}

// Snapshot is a deep-enough copy for broadcasting outside the room lock.
func (p *Playlist) Snapshot() Playlist {
	cp := *p
	cp.Items = make([]Item, len(p.Items))
	copy(cp.Items, p.Items)
	return cp
}
