package playlist

import (
	"encoding/json"
	"testing"
)

func TestItemDecodeLocal(t *testing.T) {
	raw := []byte(`{"kind":"local","filename":"movie.mkv"}`)
	var it Item
	if err := json.Unmarshal(raw, &it); err != nil {
		t.Fatal(err)
	}
	if it.Local == nil || it.External != nil {
		t.Fatal("wrong variant")
	}
	if it.Local.Media != MediaVideo {
		t.Fatalf("kind = %q, want video from extension", it.Local.Media)
	}
	if it.Local.SelectedSubtitleTrack != -1 {
		t.Fatalf("subtitle default = %d, want -1 (off)", it.Local.SelectedSubtitleTrack)
	}
}

func TestItemDecodeExternal(t *testing.T) {
	raw := []byte(`{"kind":"external","platform":"youtube","externalId":"abc123","title":"Clip"}`)
	var it Item
	if err := json.Unmarshal(raw, &it); err != nil {
		t.Fatal(err)
	}
	if it.External == nil {
		t.Fatal("wrong variant")
	}
	if it.External.SyncLevel != SyncFull {
		t.Fatalf("syncLevel = %q, want platform default full", it.External.SyncLevel)
	}
}

func TestItemDecodeKindProbe(t *testing.T) {
	// Older clients omit "kind"; the decoder falls back on field presence.
	var local Item
	if err := json.Unmarshal([]byte(`{"filename":"a.mp3"}`), &local); err != nil {
		t.Fatal(err)
	}
	if local.Local == nil || local.Local.Media != MediaAudio {
		t.Fatalf("probe failed for local item: %+v", local)
	}

	var ext Item
	if err := json.Unmarshal([]byte(`{"platform":"twitch","externalUrl":"https://example.test/x","title":"Live"}`), &ext); err != nil {
		t.Fatal(err)
	}
	if ext.External == nil || ext.External.SyncLevel != SyncAutoplay {
		t.Fatalf("probe failed for external item: %+v", ext)
	}
}

func TestItemDecodeRejectsInvalid(t *testing.T) {
	tests := []string{
		`{}`,
		`{"kind":"local"}`,
		`{"kind":"external","platform":"unknown-site","externalId":"x","title":"T"}`,
		`{"kind":"external","platform":"youtube","title":"no id or url"}`,
	}
	for _, raw := range tests {
		var it Item
		if err := json.Unmarshal([]byte(raw), &it); err == nil {
			t.Errorf("accepted invalid item %s", raw)
		}
	}
}

func TestItemMarshalRoundTrip(t *testing.T) {
	it := Item{External: &ExternalEmbed{
		Platform:   PlatformVimeo,
		ExternalID: "v1",
		Title:      "T",
		SyncLevel:  SyncFull,
	}}
	raw, err := json.Marshal(it)
	if err != nil {
		t.Fatal(err)
	}
	var back Item
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.External == nil || back.External.Platform != PlatformVimeo {
		t.Fatalf("round trip: %+v", back)
	}
}

func TestDecodeItemsDropsBadEntries(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"kind":"local","filename":"ok.mkv"}`),
		json.RawMessage(`{"kind":"external","platform":"nope","title":"bad"}`),
		json.RawMessage(`{"kind":"local","filename":"also-ok.mkv"}`),
	}
	items := DecodeItems(raws)
	if len(items) != 2 {
		t.Fatalf("kept %d items, want 2", len(items))
	}
}

func TestReplaceClampsIndices(t *testing.T) {
	p := New()
	if p.CurrentIndex != -1 || p.MainItemIndex != -1 {
		t.Fatal("fresh playlist is not idle")
	}

	items := []Item{
		{Local: &LocalMedia{Filename: "a.mkv"}},
		{Local: &LocalMedia{Filename: "b.mkv"}},
	}
	p.Replace(items, 9, 0)
	if p.CurrentIndex != 0 {
		t.Fatalf("currentIndex = %d", p.CurrentIndex)
	}
	if p.MainItemIndex != -1 {
		t.Fatalf("out-of-range main index kept: %d", p.MainItemIndex)
	}

	p.Replace(nil, 0, 0)
	if p.CurrentIndex != -1 || p.MainItemIndex != -1 {
		t.Fatal("empty replace did not go idle")
	}
}

func TestSwapFixesIndices(t *testing.T) {
	p := New()
	p.Replace([]Item{
		{Local: &LocalMedia{Filename: "a.mkv"}},
		{Local: &LocalMedia{Filename: "b.mkv"}},
		{Local: &LocalMedia{Filename: "c.mkv"}},
	}, 2, 0)
	p.CurrentIndex = 0

	if !p.Swap(0, 2) {
		t.Fatal("swap rejected")
	}
	if p.Items[0].Local.Filename != "c.mkv" {
		t.Fatalf("items not swapped: %q", p.Items[0].Local.Filename)
	}
	if p.CurrentIndex != 2 {
		t.Fatalf("currentIndex = %d, want to follow the item", p.CurrentIndex)
	}
	if p.MainItemIndex != 0 {
		t.Fatalf("mainItemIndex = %d, want to follow the item", p.MainItemIndex)
	}

	if p.Swap(0, 0) || p.Swap(-1, 1) || p.Swap(0, 3) {
		t.Fatal("invalid swap accepted")
	}
}

func TestDetectMediaKind(t *testing.T) {
	tests := []struct {
		file string
		want MediaKind
	}{
		{"a.mkv", MediaVideo},
		{"a.MP4", MediaVideo},
		{"a.flac", MediaAudio},
		{"a.opus", MediaAudio},
		{"a.webp", MediaImage},
		{"a.unknownext", MediaVideo},
	}
	for _, tt := range tests {
		if got := DetectMediaKind(tt.file); got != tt.want {
			t.Errorf("DetectMediaKind(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestDefaultTracks(t *testing.T) {
	ts := TrackSet{
		Audio: []Track{
			{Index: 1},
			{Index: 2, Default: true},
		},
		Subtitles: []Track{
			{Index: 3},
		},
	}
	if got := ts.DefaultAudio(); got != 2 {
		t.Fatalf("DefaultAudio = %d", got)
	}
	if got := ts.DefaultSubtitle(); got != -1 {
		t.Fatalf("DefaultSubtitle = %d, want -1 with no flagged default", got)
	}

	ts.Subtitles[0].Default = true
	if got := ts.DefaultSubtitle(); got != 3 {
		t.Fatalf("DefaultSubtitle = %d", got)
	}
}
