package jobs

import (
	"os"
	"strings"
)

// CleanVTT rewrites a WebVTT file without duplicate or artefactual cues.
// Extracted bitmap-adjacent subtitle streams often repeat the same text
// across back-to-back cues (rolling captions), which renders as flicker.
func CleanVTT(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	blocks := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n\n")
	var out []string
	var lastText string
	for _, block := range blocks {
		block = strings.TrimRight(block, "\n")
		if block == "" {
			continue
		}
		// Header and NOTE blocks pass through untouched
		if !strings.Contains(block, "-->") {
			out = append(out, block)
			continue
		}

		lines := strings.Split(block, "\n")
		textStart := 0
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				textStart = i + 1
				break
			}
		}
		text := strings.TrimSpace(strings.Join(lines[textStart:], "\n"))
		if text == "" || text == lastText {
			continue
		}
		lastText = text
		out = append(out, block)
	}

	return os.WriteFile(path, []byte(strings.Join(out, "\n\n")+"\n"), 0o644)
}
