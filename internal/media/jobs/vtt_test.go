package jobs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCleanVTTDropsDuplicateCues(t *testing.T) {
	in := strings.Join([]string{
		"WEBVTT",
		"",
		"00:00:01.000 --> 00:00:02.000",
		"Hello there",
		"",
		"00:00:02.000 --> 00:00:03.000",
		"Hello there",
		"",
		"00:00:03.000 --> 00:00:04.000",
		"Something new",
		"",
	}, "\n")

	path := filepath.Join(t.TempDir(), "subs.vtt")
	if err := os.WriteFile(path, []byte(in), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CleanVTT(path); err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	if got := strings.Count(text, "Hello there"); got != 1 {
		t.Fatalf("duplicate cue kept: %d occurrences", got)
	}
	if !strings.Contains(text, "Something new") {
		t.Fatal("distinct cue dropped")
	}
	if !strings.HasPrefix(text, "WEBVTT") {
		t.Fatal("header lost")
	}
}

func TestCleanVTTDropsEmptyCues(t *testing.T) {
	in := strings.Join([]string{
		"WEBVTT",
		"",
		"00:00:01.000 --> 00:00:02.000",
		"",
		"",
		"00:00:02.000 --> 00:00:03.000",
		"Kept",
		"",
	}, "\n")

	path := filepath.Join(t.TempDir(), "subs.vtt")
	if err := os.WriteFile(path, []byte(in), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CleanVTT(path); err != nil {
		t.Fatal(err)
	}
	out, _ := os.ReadFile(path)
	if strings.Count(string(out), "-->") != 1 {
		t.Fatalf("empty cue kept:\n%s", out)
	}
}

func TestCleanVTTNormalizesCRLF(t *testing.T) {
	in := "WEBVTT\r\n\r\n00:00:01.000 --> 00:00:02.000\r\nLine\r\n"
	path := filepath.Join(t.TempDir(), "subs.vtt")
	if err := os.WriteFile(path, []byte(in), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CleanVTT(path); err != nil {
		t.Fatal(err)
	}
	out, _ := os.ReadFile(path)
	if strings.Contains(string(out), "\r") {
		t.Fatal("carriage returns survived")
	}
	if !strings.Contains(string(out), "Line") {
		t.Fatal("cue text lost")
	}
}
