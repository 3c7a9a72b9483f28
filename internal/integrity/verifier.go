// Package integrity runs the probe binary over a finished download's final
// artifact and translates its exit code and stderr into ok/fail.
package integrity

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/h2non/filetype"
)

const stderrTruncateLimit = 1024

// Verifier validates a finished artifact against the configured probe
// binary (an ffprobe-class tool).
type Verifier struct {
	proberBin string
	timeout   time.Duration
}

// NewVerifier constructs a Verifier that shells out to proberBin.
func NewVerifier(proberBin string) *Verifier {
	return &Verifier{proberBin: proberBin, timeout: 30 * time.Second}
}

// Verify runs the pre-checks (exists, nonzero size, plausible container by
// magic bytes) then the probe invocation. The filetype sniff can only
// reject: an artifact whose magic bytes identify a type outside
// video/audio/application (e.g. an image) fails here without the probe
// being run. An artifact the sniff does not recognize, or recognizes as
// one of those types, goes to the probe, whose result decides.
func (v *Verifier) Verify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("artifact is empty")
	}

	if kind, err := filetype.MatchFile(path); err == nil && kind != filetype.Unknown {
		if kind.MIME.Type != "video" && kind.MIME.Type != "audio" && kind.MIME.Type != "application" {
			return fmt.Errorf("unexpected container type %q", kind.MIME.Value)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.proberBin, "-v", "error", "-show_format", "-show_streams", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s", truncate(stderr.String(), stderrTruncateLimit))
	}
	if stderr.Len() > 0 {
		return fmt.Errorf("%s", truncate(stderr.String(), stderrTruncateLimit))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
