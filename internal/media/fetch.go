package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel fetch errors, matched by the pipeline to classify failures.
var (
	ErrInvalidURL  = errors.New("not a supported video URL")
	ErrUnavailable = errors.New("content unavailable or private")
	ErrRateLimited = errors.New("rate limited by source")
)

// instagramPaths are the content path prefixes accepted on instagram hosts.
var instagramPaths = []string{"/reel/", "/reels/", "/p/", "/tv/", "/stories/"}

// Fetcher downloads source media into a job workspace using yt-dlp. It does
// not retry; yt-dlp's own retry behavior is the only one applied.
type Fetcher struct {
	ytdlpPath string
	maxBytes  int64
	runner    commandRunner
}

func NewFetcher(ytdlpPath string, maxBytes int64) *Fetcher {
	return &Fetcher{
		ytdlpPath: ytdlpPath,
		maxBytes:  maxBytes,
		runner:    execRunner{},
	}
}

// ValidateURL checks that rawURL is a well-formed Instagram content URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "instagram.com" && !strings.HasSuffix(host, ".instagram.com") {
		return fmt.Errorf("%w: host %s", ErrInvalidURL, u.Hostname())
	}

	for _, prefix := range instagramPaths {
		if strings.HasPrefix(u.Path, prefix) {
			return nil
		}
	}
	return fmt.Errorf("%w: path %s", ErrInvalidURL, u.Path)
}

// Fetch downloads the media behind rawURL into dir and returns the local file
// path. The file is named source.<ext> where the extension comes from yt-dlp.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	if err := ValidateURL(rawURL); err != nil {
		return "", err
	}

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"-f", "bestaudio/best",
		"--max-filesize", fmt.Sprintf("%d", f.maxBytes),
		"-o", filepath.Join(dir, "source.%(ext)s"),
		rawURL,
	}

	log.Printf("[fetch] downloading %s", rawURL)
	result, err := f.runner.Run(ctx, f.ytdlpPath, args...)
	if err != nil {
		return "", classifyFetchError(result.Stderr, err)
	}

	path, err := findDownload(dir)
	if err != nil {
		return "", err
	}

	log.Printf("[fetch] downloaded %s", path)
	return path, nil
}

// classifyFetchError maps yt-dlp stderr output to fetch error kinds.
func classifyFetchError(stderr string, err error) error {
	out := strings.ToLower(stderr)
	switch {
	case strings.Contains(out, "private") ||
		strings.Contains(out, "login required") ||
		strings.Contains(out, "unavailable") ||
		strings.Contains(out, "404"):
		return fmt.Errorf("%w: %s", ErrUnavailable, firstLine(stderr))
	case strings.Contains(out, "429") || strings.Contains(out, "rate"):
		return fmt.Errorf("%w: %s", ErrRateLimited, firstLine(stderr))
	case strings.Contains(out, "unsupported url") || strings.Contains(out, "is not a valid url"):
		return fmt.Errorf("%w: %s", ErrInvalidURL, firstLine(stderr))
	}
	return fmt.Errorf("download failed: %s: %w", firstLine(stderr), err)
}

// findDownload locates the file yt-dlp wrote; the extension is not known
// until the download finishes.
func findDownload(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "source.") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", errors.New("download finished but file not found")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
