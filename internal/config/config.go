package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every runtime knob of the coordinator. Values come from
// environment variables, which override an optional KEY=VALUE file
// (server.env) in the working directory.
type Config struct {
	Port int `mapstructure:"PORT"`

	// Player behaviour pushed to clients
	VolumeStep       int    `mapstructure:"VOLUME_STEP"`
	SkipSeconds      int    `mapstructure:"SKIP_SECONDS"`
	SkipIntroSeconds int    `mapstructure:"SKIP_INTRO_SECONDS"`
	MaxVolume        int    `mapstructure:"MAX_VOLUME"`
	SubtitleRenderer string `mapstructure:"SUBTITLE_RENDERER"`
	VideoAutoplay    bool   `mapstructure:"VIDEO_AUTOPLAY"`

	// Join / sync policy
	JoinMode               string `mapstructure:"JOIN_MODE"`
	ClientControlsDisabled bool   `mapstructure:"CLIENT_CONTROLS_DISABLED"`
	ClientSyncDisabled     bool   `mapstructure:"CLIENT_SYNC_DISABLED"`

	// TLS
	UseHTTPS    bool   `mapstructure:"USE_HTTPS"`
	SSLKeyFile  string `mapstructure:"SSL_KEY_FILE"`
	SSLCertFile string `mapstructure:"SSL_CERT_FILE"`

	// BSL (both-side local sync)
	BSLMode           string `mapstructure:"BSL_MODE"`
	BSLAdvancedMatch  bool   `mapstructure:"BSL_ADVANCED_MATCH"`
	BSLMatchThreshold int    `mapstructure:"BSL_MATCH_THRESHOLD"`

	// Rooms / admin
	ServerMode           bool   `mapstructure:"SERVER_MODE"`
	AdminFingerprintLock bool   `mapstructure:"ADMIN_FINGERPRINT_LOCK"`
	ChatEnabled          bool   `mapstructure:"CHAT_ENABLED"`
	DataHydration        bool   `mapstructure:"DATA_HYDRATION"`
	FFmpegToolsPassword  string `mapstructure:"FFMPEG_TOOLS_PASSWORD"`

	// Paths
	MediaDir string `mapstructure:"MEDIA_DIR"`
	DataDir  string `mapstructure:"DATA_DIR"`

	// Media library backend: "local" (default) serves MediaDir from disk,
	// "s3" lists an S3/B2 bucket instead. ffmpeg jobs need local files and
	// are disabled in s3 mode.
	Storage struct {
		Provider string `mapstructure:"STORAGE_PROVIDER"`
		KeyID    string `mapstructure:"STORAGE_KEY_ID"`
		AppKey   string `mapstructure:"STORAGE_APP_KEY"`
		Endpoint string `mapstructure:"STORAGE_ENDPOINT"`
		Region   string `mapstructure:"STORAGE_REGION"`
		Bucket   string `mapstructure:"STORAGE_BUCKET"`
	} `mapstructure:",squash"`
}

var keys = []string{
	"PORT", "VOLUME_STEP", "SKIP_SECONDS", "SKIP_INTRO_SECONDS", "MAX_VOLUME",
	"SUBTITLE_RENDERER", "VIDEO_AUTOPLAY", "JOIN_MODE",
	"CLIENT_CONTROLS_DISABLED", "CLIENT_SYNC_DISABLED",
	"USE_HTTPS", "SSL_KEY_FILE", "SSL_CERT_FILE",
	"BSL_MODE", "BSL_ADVANCED_MATCH", "BSL_MATCH_THRESHOLD",
	"SERVER_MODE", "ADMIN_FINGERPRINT_LOCK", "CHAT_ENABLED", "DATA_HYDRATION",
	"FFMPEG_TOOLS_PASSWORD", "MEDIA_DIR", "DATA_DIR",
	"STORAGE_PROVIDER", "STORAGE_KEY_ID", "STORAGE_APP_KEY",
	"STORAGE_ENDPOINT", "STORAGE_REGION", "STORAGE_BUCKET",
}

func Load() *Config {
	viper.AutomaticEnv()

	// Register keys so env always wins over the file
	for _, k := range keys {
		viper.BindEnv(k)
	}

	// Defaults
	viper.SetDefault("PORT", 3000)
	viper.SetDefault("VOLUME_STEP", 5)
	viper.SetDefault("SKIP_SECONDS", 5)
	viper.SetDefault("SKIP_INTRO_SECONDS", 87)
	viper.SetDefault("MAX_VOLUME", 100)
	viper.SetDefault("SUBTITLE_RENDERER", "wsr")
	viper.SetDefault("VIDEO_AUTOPLAY", false)
	viper.SetDefault("JOIN_MODE", "sync")
	viper.SetDefault("CLIENT_CONTROLS_DISABLED", false)
	viper.SetDefault("CLIENT_SYNC_DISABLED", false)
	viper.SetDefault("USE_HTTPS", false)
	viper.SetDefault("BSL_MODE", "any")
	viper.SetDefault("BSL_ADVANCED_MATCH", true)
	viper.SetDefault("BSL_MATCH_THRESHOLD", 1)
	viper.SetDefault("SERVER_MODE", false)
	viper.SetDefault("ADMIN_FINGERPRINT_LOCK", false)
	viper.SetDefault("CHAT_ENABLED", true)
	viper.SetDefault("DATA_HYDRATION", true)
	viper.SetDefault("FFMPEG_TOOLS_PASSWORD", "")
	viper.SetDefault("MEDIA_DIR", "./media")
	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("STORAGE_PROVIDER", "local")

	viper.SetConfigName("server")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: config error: %s", err)
		} else {
			log.Println("Info: server.env not found, using environment variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	cfg.clamp()
	return &cfg
}

// clamp forces every knob back into its documented range rather than
// rejecting the whole config over one bad value.
func (c *Config) clamp() {
	c.Port = clampInt(c.Port, 1024, 49151)
	c.VolumeStep = clampInt(c.VolumeStep, 1, 20)
	c.SkipSeconds = clampInt(c.SkipSeconds, 5, 60)
	if c.SkipIntroSeconds < 1 {
		c.SkipIntroSeconds = 87
	}
	c.MaxVolume = clampInt(c.MaxVolume, 100, 1000)
	c.BSLMatchThreshold = clampInt(c.BSLMatchThreshold, 1, 4)

	if c.JoinMode != "sync" && c.JoinMode != "reset" {
		c.JoinMode = "sync"
	}
	if c.BSLMode != "any" && c.BSLMode != "all" {
		c.BSLMode = "any"
	}
	if c.SubtitleRenderer != "wsr" && c.SubtitleRenderer != "jassub" {
		c.SubtitleRenderer = "wsr"
	}
	// jassub needs SharedArrayBuffer, which browsers only grant over HTTPS
	if c.SubtitleRenderer == "jassub" && !c.UseHTTPS {
		log.Println("Warning: SUBTITLE_RENDERER=jassub requires HTTPS, falling back to wsr")
		c.SubtitleRenderer = "wsr"
	}
	if p := strings.ToLower(c.Storage.Provider); p == "s3" || p == "b2" {
		c.Storage.Provider = "s3"
	} else {
		c.Storage.Provider = "local"
	}
}

// FFmpegToolsEnabled reports whether the password-gated media tools are on.
func (c *Config) FFmpegToolsEnabled() bool {
	return c.FFmpegToolsPassword != ""
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
