package playback

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestExtrapolateWhilePlaying(t *testing.T) {
	s := NewState()
	s.Position = 30
	s.IsPlaying = true
	s.Anchor = t0

	// 4s at 1.0x, then rate change to 2.0x and 2 more seconds
	if got := s.Extrapolate(t0.Add(4 * time.Second)); got != 34 {
		t.Fatalf("position after 4s = %v, want 34", got)
	}
	if !s.SetRate(2.0, t0.Add(4*time.Second)) {
		t.Fatal("SetRate(2.0) rejected")
	}
	if got := s.Extrapolate(t0.Add(6 * time.Second)); got != 38 {
		t.Fatalf("position after rate change = %v, want 38", got)
	}
}

func TestExtrapolateWhilePaused(t *testing.T) {
	s := NewState()
	s.Position = 30
	s.Anchor = t0
	if got := s.Extrapolate(t0.Add(time.Hour)); got != 30 {
		t.Fatalf("paused position = %v, want 30", got)
	}
}

func TestExtrapolateBackwardClockJump(t *testing.T) {
	s := NewState()
	s.Position = 30
	s.IsPlaying = true
	s.Anchor = t0
	if got := s.Extrapolate(t0.Add(-10 * time.Second)); got != 30 {
		t.Fatalf("position after backward jump = %v, want 30", got)
	}
}

func TestConsolidateReanchors(t *testing.T) {
	s := NewState()
	s.Position = 10
	s.IsPlaying = true
	s.Anchor = t0

	now := t0.Add(5 * time.Second)
	s.Consolidate(now)
	if s.Position != 15 {
		t.Fatalf("consolidated position = %v, want 15", s.Position)
	}
	if !s.Anchor.Equal(now) {
		t.Fatalf("anchor = %v, want %v", s.Anchor, now)
	}
	// Consolidating again at the same instant must be a no-op
	s.Consolidate(now)
	if s.Position != 15 {
		t.Fatalf("double consolidate moved position to %v", s.Position)
	}
}

func TestSetPlayingFreezesPosition(t *testing.T) {
	s := NewState()
	s.Position = 20
	s.IsPlaying = true
	s.Anchor = t0

	s.SetPlaying(false, t0.Add(3*time.Second))
	if s.Position != 23 {
		t.Fatalf("pause folded position = %v, want 23", s.Position)
	}
	if s.IsPlaying {
		t.Fatal("still playing after pause")
	}
}

func TestSeek(t *testing.T) {
	tests := []struct {
		name   string
		target float64
		ok     bool
	}{
		{"zero", 0, true},
		{"forward", 120.5, true},
		{"negative", -1, false},
		{"nan", math.NaN(), false},
		{"inf", math.Inf(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			s.Position = 50
			s.Anchor = t0
			if got := s.Seek(tt.target, t0); got != tt.ok {
				t.Fatalf("Seek(%v) = %v, want %v", tt.target, got, tt.ok)
			}
			if !tt.ok && s.Position != 50 {
				t.Fatalf("rejected seek moved position to %v", s.Position)
			}
		})
	}
}

func TestSkipRelativeClampsAtZero(t *testing.T) {
	s := NewState()
	s.Position = 3
	s.Anchor = t0
	s.SkipRelative(-10, t0)
	if s.Position != 0 {
		t.Fatalf("position = %v, want 0", s.Position)
	}
}

func TestValidRate(t *testing.T) {
	tests := []struct {
		rate float64
		ok   bool
	}{
		{0.25, true},
		{1.0, true},
		{1.75, true},
		{3.0, true},
		{0.24, false},
		{0.0, false},
		{3.25, false},
		{1.1, false},
		{-1.0, false},
	}
	for _, tt := range tests {
		if got := ValidRate(tt.rate); got != tt.ok {
			t.Errorf("ValidRate(%v) = %v, want %v", tt.rate, got, tt.ok)
		}
	}
}

func TestSetRateConsolidatesFirst(t *testing.T) {
	s := NewState()
	s.Position = 0
	s.IsPlaying = true
	s.Anchor = t0

	// 10s at 1.0x must be banked before the 2.0x rate applies
	if !s.SetRate(2.0, t0.Add(10*time.Second)) {
		t.Fatal("SetRate rejected")
	}
	if s.Position != 10 {
		t.Fatalf("position = %v, want 10", s.Position)
	}
	if got := s.Extrapolate(t0.Add(15 * time.Second)); got != 20 {
		t.Fatalf("position 5s later = %v, want 20", got)
	}
}
