package bsl

// Drift bounds in seconds. Values outside the range are clamped, not
// rejected, so a fat-fingered slider still lands on something sane.
const (
	DriftMin = -60
	DriftMax = 60
)

// DriftTable maps fingerprint -> playlist index -> signed drift seconds.
// The drift is added to the broadcast position at the viewer when playing
// the matched item; the shared PlaybackState never sees it.
type DriftTable map[string]map[int]int

func NewDriftTable() DriftTable {
	return make(DriftTable)
}

// Set stores a clamped drift value and returns what was stored.
func (dt DriftTable) Set(fingerprint string, index, seconds int) int {
	if seconds < DriftMin {
		seconds = DriftMin
	}
	if seconds > DriftMax {
		seconds = DriftMax
	}
	m, ok := dt[fingerprint]
	if !ok {
		m = make(map[int]int)
		dt[fingerprint] = m
	}
	m[index] = seconds
	return seconds
}

// Values returns a copy of one fingerprint's drift map (never nil).
func (dt DriftTable) Values(fingerprint string) map[int]int {
	out := make(map[int]int, len(dt[fingerprint]))
	for i, v := range dt[fingerprint] {
		out[i] = v
	}
	return out
}
