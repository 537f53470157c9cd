// Package fetch wraps the external content-fetching tool. The worker pool
// treats it as a black box: one call per attempt that either produces a
// file or fails with a descriptive error.
package fetch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/lrstanley/go-ytdlp"

	"github.com/vidsaver/vidsaver/errors"
	"github.com/vidsaver/vidsaver/queue"
)

// YTDLP fetches media by shelling out to the yt-dlp tool.
// It implements queue.Fetcher.
type YTDLP struct {
	cookieFile string
}

// Option configures a YTDLP fetcher.
type Option func(*YTDLP)

// WithCookieFile points yt-dlp at a cookie file for authenticated downloads.
func WithCookieFile(path string) Option {
	return func(f *YTDLP) { f.cookieFile = path }
}

// NewYTDLP creates a yt-dlp backed fetcher.
func NewYTDLP(opts ...Option) *YTDLP {
	f := &YTDLP{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the URL into destDir and reports the resulting file.
// The title is truncated in the output template to stay under filesystem
// name limits (video descriptions can run to hundreds of characters), and
// special characters are restricted to ASCII-safe equivalents.
func (f *YTDLP) Fetch(ctx context.Context, sourceURL, destDir string) (queue.Result, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return queue.Result{}, errors.Wrap(err, "failed to create download directory")
	}

	dl := ytdlp.New().
		RestrictFilenames().
		NoWarnings().
		Output(filepath.Join(destDir, "%(title).80s.%(ext)s"))

	if f.cookieFile != "" {
		dl = dl.Cookies(f.cookieFile)
	}

	res, err := dl.Run(ctx, sourceURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Timeouts and cancellations surface as the context error so
			// the classifier sees a consistent shape.
			return queue.Result{}, errors.Wrap(ctxErr, "download aborted")
		}
		return queue.Result{}, errors.Wrap(err, "yt-dlp failed")
	}

	info, err := res.GetExtractedInfo()
	if err != nil || len(info) == 0 || info[0].Filename == nil {
		return queue.Result{}, errors.New("failed to extract download information")
	}
	path := *info[0].Filename

	stat, err := os.Stat(path)
	if err != nil {
		return queue.Result{}, errors.Wrapf(err, "downloaded file missing: %s", path)
	}

	return queue.Result{Path: path, Size: stat.Size()}, nil
}
