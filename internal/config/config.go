// Package config holds the compile-time guardrail constants and the
// optional operator-tunable file configuration layered on top of them.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"

	"github.com/BurntSushi/toml"
)

// Guardrails are the compile-time constants from spec §6. They are never
// overridden by the file config; the file config only tunes paths and
// operational knobs.
const (
	MaxConcurrentDownloads = 2
	MaxPlaylistItems       = 100
	DefaultFragments       = 8
	IPCVersion             = 1
)

// Config is the fully-resolved operator configuration: guardrails plus
// whatever vidflow.toml supplied, with defaults filled in for the rest.
type Config struct {
	DownloaderBin   string `toml:"downloader_bin"`
	ProberBin       string `toml:"prober_bin"`
	DownloadDir     string `toml:"download_dir"`
	DataDir         string `toml:"data_dir"`
	ListenAddr      string `toml:"listen_addr"`
	AuthToken       string `toml:"auth_token"`
	EventRateMillis int    `toml:"event_rate_millis"`
	QuietHoursStart int    `toml:"quiet_hours_start"` // 0-23, -1 disables
	QuietHoursStop  int    `toml:"quiet_hours_stop"`
}

// Default returns the built-in configuration used when no file is present
// or the file fails to parse — a malformed config is never fatal.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DownloaderBin:   "yt-dlp",
		ProberBin:       "ffprobe",
		DownloadDir:     home,
		DataDir:         defaultDataDir(),
		ListenAddr:      "127.0.0.1:4444",
		AuthToken:       generateToken(),
		EventRateMillis: 100,
		QuietHoursStart: -1,
		QuietHoursStop:  -1,
	}
}

// Load reads vidflow.toml at path, overlaying it onto Default(). Any read or
// parse error is swallowed and the default configuration is returned — per
// SPEC_FULL.md §3, configuration failure must never be fatal.
func Load(path string) Config {
	cfg := Default()
	if path == "" {
		return cfg
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default()
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = generateToken()
	}
	return cfg
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".vidflow"
	}
	return dir + "/vidflow"
}

func generateToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "vidflow-fallback-token-change-me"
	}
	return hex.EncodeToString(b)
}
