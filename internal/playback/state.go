package playback

import (
	"math"
	"time"
)

// Rate grid accepted by SetRate: 0.25 steps inside [0.25, 3.0].
const (
	MinRate  = 0.25
	MaxRate  = 3.0
	RateStep = 0.25
)

// State is the authoritative playback tuple of one room. Position is only
// meaningful together with Anchor: while playing, the logical position is
// Position plus the rate-scaled wall time elapsed since Anchor.
type State struct {
	IsPlaying     bool      `json:"isPlaying"`
	Position      float64   `json:"position"`
	Rate          float64   `json:"rate"`
	Anchor        time.Time `json:"anchor"`
	AudioTrack    int       `json:"audioTrack"`
	SubtitleTrack int       `json:"subtitleTrack"`
}

func NewState() State {
	return State{Rate: 1.0, SubtitleTrack: -1}
}

// Consolidate folds elapsed real time into Position and re-anchors at now.
// Must run before any mutation of IsPlaying or Rate. The max(0, ...) guard
// keeps a backward wall-clock jump from rewinding the position.
func (s *State) Consolidate(now time.Time) {
	if s.IsPlaying {
		elapsed := now.Sub(s.Anchor).Seconds()
		if elapsed > 0 {
			s.Position += s.Rate * elapsed
		}
	}
	s.Anchor = now
}

// Extrapolate returns the logical position at now without mutating state.
func (s *State) Extrapolate(now time.Time) float64 {
	if !s.IsPlaying {
		return s.Position
	}
	elapsed := now.Sub(s.Anchor).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return s.Position + s.Rate*elapsed
}

// Seek moves Position to t and re-anchors. Negative targets are rejected.
func (s *State) Seek(t float64, now time.Time) bool {
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return false
	}
	s.Position = t
	s.Anchor = now
	return true
}

// SkipRelative consolidates then shifts Position by delta, clamped at 0.
func (s *State) SkipRelative(delta float64, now time.Time) {
	s.Consolidate(now)
	s.Position += delta
	if s.Position < 0 {
		s.Position = 0
	}
}

// SetPlaying consolidates then flips the play flag.
func (s *State) SetPlaying(playing bool, now time.Time) {
	s.Consolidate(now)
	s.IsPlaying = playing
}

// SetRate consolidates then applies r. Off-grid rates are rejected.
func (s *State) SetRate(r float64, now time.Time) bool {
	if !ValidRate(r) {
		return false
	}
	s.Consolidate(now)
	s.Rate = r
	return true
}

// ValidRate reports whether r sits exactly on the 0.25 grid in [0.25, 3.0].
func ValidRate(r float64) bool {
	if r < MinRate || r > MaxRate {
		return false
	}
	steps := r / RateStep
	return math.Abs(steps-math.Round(steps)) < 1e-9
}
