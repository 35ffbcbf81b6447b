// Package extract turns a video id into a signed, directly playable audio
// URL by shelling out to yt-dlp. Extraction is slow (seconds) and the
// returned URLs expire, so callers cache aggressively.
package extract

import (
	"bytes"
	"context"
	"log"
	"os/exec"
	"strings"
	"time"

	"tunebridge/models"
	"tunebridge/utils"
)

const (
	defaultBinary  = "yt-dlp"
	defaultTimeout = 25 * time.Second

	// audioFormat prefers m4a, which both iOS and Android native players
	// handle without transcoding, then falls back to best available audio.
	audioFormat = "bestaudio[ext=m4a]/bestaudio"
)

// CommandRunner executes the external tool. The indirection exists so tests
// can fake the process boundary.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.String(), errBuf.String(), err
}

// Extractor resolves video ids into stream URLs via yt-dlp.
type Extractor struct {
	binary  string
	timeout time.Duration
	runner  CommandRunner
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithBinary overrides the yt-dlp executable path.
func WithBinary(path string) Option {
	return func(e *Extractor) {
		if strings.TrimSpace(path) != "" {
			e.binary = path
		}
	}
}

// WithTimeout overrides the wall-clock budget for one extraction.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRunner substitutes the process boundary, for tests.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

// NewExtractor creates an extractor with sane defaults.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		binary:  defaultBinary,
		timeout: defaultTimeout,
		runner:  execRunner{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve invokes yt-dlp against the canonical watch URL for videoID and
// returns the signed audio stream URL. There is no internal retry; a failed
// call surfaces immediately and retry policy belongs to the caller.
func (e *Extractor) Resolve(ctx context.Context, videoID string) (models.StreamURLEntry, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return models.StreamURLEntry{}, &Error{Kind: KindNotFound, Message: "empty video id"}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	watchURL := utils.WatchURL(videoID)
	start := time.Now()
	stdout, stderr, err := e.runner.Run(ctx, e.binary,
		"-f", audioFormat,
		"-g",
		"--no-warnings",
		"--no-playlist",
		watchURL,
	)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			log.Printf("[extract] timeout after %s for %s", elapsed, videoID)
			return models.StreamURLEntry{}, &Error{Kind: KindTimeout, Message: "extraction timed out after " + e.timeout.String()}
		}
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		kind := classify(msg)
		log.Printf("[extract] failed for %s (%s): %s", videoID, kind, firstLine(msg))
		return models.StreamURLEntry{}, &Error{Kind: kind, Message: firstLine(msg)}
	}

	streamURL := strings.TrimSpace(stdout)
	if streamURL == "" {
		log.Printf("[extract] empty output for %s: %s", videoID, firstLine(stderr))
		return models.StreamURLEntry{}, &Error{Kind: KindNotFound, Message: "no stream URL in tool output"}
	}
	// yt-dlp -g can emit one URL per line; a single requested format must
	// produce exactly one.
	if i := strings.IndexByte(streamURL, '\n'); i >= 0 {
		streamURL = strings.TrimSpace(streamURL[:i])
	}

	if !strings.HasPrefix(streamURL, "http://") && !strings.HasPrefix(streamURL, "https://") {
		log.Printf("[extract] invalid URL format for %s: %q", videoID, truncate(streamURL, 80))
		return models.StreamURLEntry{}, &Error{Kind: KindInvalidFormat, Message: "tool output is not an absolute http(s) URL"}
	}

	log.Printf("[extract] resolved %s in %s", videoID, elapsed)
	return models.StreamURLEntry{
		VideoID:  videoID,
		URL:      streamURL,
		IssuedAt: time.Now(),
	}, nil
}

// restrictedMarkers are platform error fragments meaning the video exists
// but cannot be played for this client.
var restrictedMarkers = []string{
	"private video",
	"sign in to confirm your age",
	"age-restricted",
	"restricted",
	"members-only",
}

// notFoundMarkers mean the video is gone or never existed.
var notFoundMarkers = []string{
	"video unavailable",
	"this video is not available",
	"does not exist",
	"has been removed",
}

func classify(stderr string) Kind {
	msg := strings.ToLower(stderr)
	for _, m := range restrictedMarkers {
		if strings.Contains(msg, m) {
			return KindRestricted
		}
	}
	for _, m := range notFoundMarkers {
		if strings.Contains(msg, m) {
			return KindNotFound
		}
	}
	return KindFailed
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
