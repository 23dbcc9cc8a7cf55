package protocol

import (
	"math"
	"strings"
	"testing"
)

func TestValidFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"plain", "movie.mkv", true},
		{"spaces and brackets", "Show S01E01 [1080p] (x265).mkv", true},
		{"unders and dashes", "my_file-v2.mp4", true},
		{"empty", "", false},
		{"path traversal", "../etc/passwd", false},
		{"separator", "dir/movie.mkv", false},
		{"backslash", "dir\\movie.mkv", false},
		{"shell meta", "movie;rm -rf.mkv", false},
		{"backtick", "movie`id`.mkv", false},
		{"pipe", "a|b.mkv", false},
		{"newline", "movie\n.mkv", false},
		{"too long", strings.Repeat("a", 256) + ".mkv", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFilename(tt.in); got != tt.ok {
				t.Fatalf("ValidFilename(%q) = %v, want %v", tt.in, got, tt.ok)
			}
		})
	}
}

func TestValidTime(t *testing.T) {
	tests := []struct {
		in float64
		ok bool
	}{
		{0, true},
		{1234.5, true},
		{-0.001, false},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
	}
	for _, tt := range tests {
		if got := ValidTime(tt.in); got != tt.ok {
			t.Errorf("ValidTime(%v) = %v, want %v", tt.in, got, tt.ok)
		}
	}
}

func TestValidTrackIndex(t *testing.T) {
	tests := []struct {
		kind  string
		index int
		ok    bool
	}{
		{"audio", 0, true},
		{"audio", 1007, true},
		{"audio", -1, false},
		{"subtitle", -1, true},
		{"subtitle", 3, true},
		{"subtitle", -2, false},
		{"video", 0, false},
	}
	for _, tt := range tests {
		if got := ValidTrackIndex(tt.kind, tt.index); got != tt.ok {
			t.Errorf("ValidTrackIndex(%q, %d) = %v, want %v", tt.kind, tt.index, got, tt.ok)
		}
	}
}

func TestValidDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Alice", "Alice", true},
		{"  padded  ", "padded", true},
		{"", "", false},
		{"   ", "", false},
		{strings.Repeat("n", 33), "", false},
	}
	for _, tt := range tests {
		got, ok := ValidDisplayName(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ValidDisplayName(%q) = %q, %v", tt.in, got, ok)
		}
	}
}
