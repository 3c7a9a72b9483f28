// Package metadata implements the one-shot get_video_metadata operation
// (spec §4.9): a single downloader invocation that returns parsed JSON,
// with no state machine of its own.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"vidflow/internal/config"
)

// Format describes one selectable stream per spec §4.9.
type Format struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution,omitempty"`
	ACodec     string `json:"acodec,omitempty"`
	VCodec     string `json:"vcodec,omitempty"`
	Filesize   int64  `json:"filesize,omitempty"`
}

// VideoMetadata is the parsed shape returned to the Command Surface caller.
type VideoMetadata struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Thumbnail   string        `json:"thumbnail"`
	WebpageURL  string        `json:"webpage_url"`
	Duration    float64       `json:"duration"`
	Formats     []Format      `json:"formats"`
	IsPlaylist  bool          `json:"is_playlist"`
	Entries     []VideoMetadata `json:"entries,omitempty"`
}

// rawEntry mirrors yt-dlp's -J output shape loosely enough to decode both
// single-video and flat-playlist JSON documents.
type rawEntry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Thumbnail  string    `json:"thumbnail"`
	WebpageURL string    `json:"webpage_url"`
	Duration   float64   `json:"duration"`
	Formats    []Format  `json:"formats"`
	Entries    []rawEntry `json:"entries"`
}

// Fetcher runs the downloader's metadata-only mode.
type Fetcher struct {
	downloaderBin string
}

// NewFetcher constructs a Fetcher bound to the given downloader binary.
func NewFetcher(downloaderBin string) *Fetcher {
	return &Fetcher{downloaderBin: downloaderBin}
}

// Fetch runs `<bin> -J --flat-playlist --no-warnings --playlist-end <n> <url>`
// and parses the JSON result.
func (f *Fetcher) Fetch(ctx context.Context, url string) (VideoMetadata, error) {
	args := []string{"-J", "--flat-playlist", "--no-warnings",
		"--playlist-end", fmt.Sprintf("%d", config.MaxPlaylistItems), url}

	cmd := exec.CommandContext(ctx, f.downloaderBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return VideoMetadata{}, fmt.Errorf("spawn failure: %s: %w", stderr.String(), err)
	}

	var raw rawEntry
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return VideoMetadata{}, fmt.Errorf("parse failure on metadata json: %w", err)
	}

	return toVideoMetadata(raw), nil
}

func toVideoMetadata(raw rawEntry) VideoMetadata {
	v := VideoMetadata{
		ID:         raw.ID,
		Title:      raw.Title,
		Thumbnail:  raw.Thumbnail,
		WebpageURL: raw.WebpageURL,
		Duration:   raw.Duration,
		Formats:    raw.Formats,
		IsPlaylist: len(raw.Entries) > 0,
	}
	for _, e := range raw.Entries {
		v.Entries = append(v.Entries, toVideoMetadata(e))
	}
	return v
}
