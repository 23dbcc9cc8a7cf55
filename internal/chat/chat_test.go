package chat

import (
	"strings"
	"testing"
)

func TestSanitizeEscapesHTML(t *testing.T) {
	sender, msg := Sanitize("<b>Eve</b>", `<script>alert("x")</script>`)
	if strings.Contains(sender, "<") || strings.Contains(msg, "<") {
		t.Fatalf("unescaped output: %q / %q", sender, msg)
	}
}

func TestSanitizeTruncates(t *testing.T) {
	_, msg := Sanitize("a", strings.Repeat("&", 600))
	// Truncation to 500 runs before escaping, so the escaped form may be
	// longer but must encode exactly 500 ampersands.
	if got := strings.Count(msg, "&amp;"); got != 500 {
		t.Fatalf("kept %d ampersands, want 500", got)
	}
}

func TestParseRename(t *testing.T) {
	tests := []struct {
		in   string
		name string
		ok   bool
	}{
		{"/rename Alice", "Alice", true},
		{"/rename  spaced out  ", "spaced out", true},
		// Recognized but unusable: the command text must still be swallowed
		{"/rename", "", true},
		{"/rename " + strings.Repeat("n", 33), "", true},
		// No space, so this is ordinary chat, not a rename to "Bob"
		{"/renameBob", "", false},
		{"hello world", "", false},
	}
	for _, tt := range tests {
		name, ok := ParseRename(tt.in)
		if ok != tt.ok || name != tt.name {
			t.Errorf("ParseRename(%q) = %q, %v", tt.in, name, ok)
		}
	}
}

func TestRenameNoticeEscapes(t *testing.T) {
	got := RenameNotice("<old>", "new")
	if strings.Contains(got, "<old>") {
		t.Fatalf("unescaped name in notice: %q", got)
	}
	if !strings.Contains(got, "is now known as") {
		t.Fatalf("unexpected notice: %q", got)
	}
}
