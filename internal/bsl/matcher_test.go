package bsl

import (
	"testing"
)

func sizeOracle(sizes map[string]int64) func(string) (int64, bool) {
	return func(name string) (int64, bool) {
		s, ok := sizes[name]
		return s, ok
	}
}

func TestScore(t *testing.T) {
	m := Matcher{
		Advanced:  true,
		Threshold: 1,
		ServerSize: sizeOracle(map[string]int64{
			"Movie.mkv": 700 * 1024 * 1024,
		}),
	}

	tests := []struct {
		name string
		file ClientFile
		want int
	}{
		{
			"all four criteria",
			ClientFile{Name: "Movie.mkv", Size: 700 * 1024 * 1024, Type: "video/x-matroska"},
			4,
		},
		{
			"name differs, same extension and size",
			ClientFile{Name: "movie.CAM.mkv", Size: 700*1024*1024 + 1024, Type: "video/x-matroska"},
			3,
		},
		{
			"size outside tolerance",
			ClientFile{Name: "Movie.mkv", Size: 700*1024*1024 + 2*1024*1024, Type: "video/x-matroska"},
			3,
		},
		{
			"top-level MIME agreement only",
			ClientFile{Name: "other.avi", Size: 1, Type: "video/mp4"},
			1,
		},
		{
			"nothing in common",
			ClientFile{Name: "song.mp3", Size: 1, Type: "audio/mpeg"},
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Score(tt.file, "Movie.mkv"); got != tt.want {
				t.Fatalf("Score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMatchSimpleMode(t *testing.T) {
	m := Matcher{Advanced: false}
	files := []ClientFile{{Name: "EPISODE 01.MKV"}, {Name: "extras.mkv"}}
	cands := []Candidate{{Index: 0, Filename: "episode 01.mkv"}, {Index: 1, Filename: "episode 02.mkv"}}

	got := m.Match(files, cands)
	if got[0] != "EPISODE 01.MKV" {
		t.Fatalf("match[0] = %q, want case-insensitive hit", got[0])
	}
	if _, ok := got[1]; ok {
		t.Fatal("episode 02 should not match")
	}
}

func TestMatchThreshold(t *testing.T) {
	sizes := map[string]int64{"show.mkv": 1000}
	file := ClientFile{Name: "different-name.mkv", Size: 1000, Type: "video/x-matroska"}
	cand := []Candidate{{Index: 0, Filename: "show.mkv"}}

	// ext + size + mime = 3 criteria
	for threshold, want := range map[int]bool{3: true, 4: false} {
		m := Matcher{Advanced: true, Threshold: threshold, ServerSize: sizeOracle(sizes)}
		_, ok := m.Match([]ClientFile{file}, cand)[0]
		if ok != want {
			t.Errorf("threshold %d: matched=%v, want %v", threshold, ok, want)
		}
	}
}

func TestMatchPersistedWins(t *testing.T) {
	m := Matcher{
		Advanced:  true,
		Threshold: 4,
		Persisted: map[string]string{"my local copy.mkv": "server.mkv"},
	}
	files := []ClientFile{{Name: "My Local Copy.mkv"}}
	got := m.Match(files, []Candidate{{Index: 2, Filename: "Server.mkv"}})
	if got[2] != "My Local Copy.mkv" {
		t.Fatalf("persisted match not honoured: %v", got)
	}
}

func TestSuggestRanksByCloseness(t *testing.T) {
	files := []ClientFile{
		{Name: "totally unrelated.txt"},
		{Name: "Show.S01E01.mkv"},
		{Name: "Show S01E01 1080p.mkv"},
	}
	got := Suggest(files, "Show.S01E01.mkv", 3)
	if len(got) == 0 {
		t.Fatal("no suggestions")
	}
	if got[0] != "Show.S01E01.mkv" {
		t.Fatalf("best suggestion = %q", got[0])
	}
}

func TestDriftClamp(t *testing.T) {
	dt := NewDriftTable()
	tests := []struct {
		in   int
		want int
	}{
		{30, 30},
		{75, 60},
		{-100, -60},
		{0, 0},
	}
	for _, tt := range tests {
		if got := dt.Set("fp", 0, tt.in); got != tt.want {
			t.Errorf("Set(%d) stored %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBuildStatusAggregation(t *testing.T) {
	ix := NewIndex()
	a := ix.Client("conn-a")
	a.Fingerprint = "fp-a"
	a.FolderSelected = true
	a.Matches = map[int]string{0: "file.mkv"}
	b := ix.Client("conn-b")
	b.Fingerprint = "fp-b"
	b.FolderSelected = true

	cands := []Candidate{{Index: 0, Filename: "file.mkv"}, {Index: 1, Filename: "other.mkv"}}

	any := BuildStatus(ix, NewDriftTable(), cands, ModeAny)
	if !any.ActiveItems[0] || any.ActiveItems[1] {
		t.Fatalf("any mode: %v", any.ActiveItems)
	}

	all := BuildStatus(ix, NewDriftTable(), cands, ModeAll)
	if all.ActiveItems[0] {
		t.Fatal("all mode: item 0 active with one of two viewers matched")
	}
}

func TestBuildStatusIgnoresNonReporting(t *testing.T) {
	ix := NewIndex()
	cs := ix.Client("conn-a")
	cs.FolderSelected = false
	cs.Matches = map[int]string{0: "file.mkv"}

	st := BuildStatus(ix, NewDriftTable(), []Candidate{{Index: 0, Filename: "file.mkv"}}, ModeAny)
	if st.ActiveItems[0] {
		t.Fatal("matches from a viewer without a selected folder counted")
	}
}
