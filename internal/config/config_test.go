package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.SkipIntroSeconds != 87 {
		t.Errorf("SkipIntroSeconds = %d, want 87", cfg.SkipIntroSeconds)
	}
	if cfg.JoinMode != "sync" {
		t.Errorf("JoinMode = %q, want sync", cfg.JoinMode)
	}
	if cfg.SubtitleRenderer != "wsr" {
		t.Errorf("SubtitleRenderer = %q, want wsr", cfg.SubtitleRenderer)
	}
	if cfg.Storage.Provider != "local" {
		t.Errorf("Storage.Provider = %q, want local", cfg.Storage.Provider)
	}
	if cfg.FFmpegToolsEnabled() {
		t.Error("media tools enabled without a password")
	}
}

func TestLoadClampsRanges(t *testing.T) {
	t.Setenv("PORT", "80")
	t.Setenv("VOLUME_STEP", "500")
	t.Setenv("SKIP_SECONDS", "1")
	t.Setenv("BSL_MATCH_THRESHOLD", "9")
	t.Setenv("JOIN_MODE", "bogus")
	t.Setenv("BSL_MODE", "bogus")

	cfg := Load()
	if cfg.Port != 1024 {
		t.Errorf("Port = %d, want clamp to 1024", cfg.Port)
	}
	if cfg.VolumeStep != 20 {
		t.Errorf("VolumeStep = %d, want clamp to 20", cfg.VolumeStep)
	}
	if cfg.SkipSeconds != 5 {
		t.Errorf("SkipSeconds = %d, want clamp to 5", cfg.SkipSeconds)
	}
	if cfg.BSLMatchThreshold != 4 {
		t.Errorf("BSLMatchThreshold = %d, want clamp to 4", cfg.BSLMatchThreshold)
	}
	if cfg.JoinMode != "sync" {
		t.Errorf("JoinMode = %q, want fallback to sync", cfg.JoinMode)
	}
	if cfg.BSLMode != "any" {
		t.Errorf("BSLMode = %q, want fallback to any", cfg.BSLMode)
	}
}

func TestJassubNeedsHTTPS(t *testing.T) {
	t.Setenv("SUBTITLE_RENDERER", "jassub")
	t.Setenv("USE_HTTPS", "false")
	cfg := Load()
	if cfg.SubtitleRenderer != "wsr" {
		t.Errorf("SubtitleRenderer = %q, want fallback to wsr without HTTPS", cfg.SubtitleRenderer)
	}

	t.Setenv("USE_HTTPS", "true")
	cfg = Load()
	if cfg.SubtitleRenderer != "jassub" {
		t.Errorf("SubtitleRenderer = %q, want jassub with HTTPS", cfg.SubtitleRenderer)
	}
}
