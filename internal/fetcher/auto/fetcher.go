// Package auto composes the static and headless fetchers. Pages are fetched
// statically first; snapshots that look like unrendered JavaScript shells are
// promoted to a headless re-fetch.
package auto

import (
	"context"

	"go.uber.org/zap"

	"github.com/jmallory/pagefeed/internal/feed"
)

// Config tunes the promotion heuristic.
type Config struct {
	// BodyLengthThreshold is the snapshot size below which script density
	// is inspected. Defaults to 2048 bytes.
	BodyLengthThreshold int
}

// Fetcher implements feed.Fetcher by delegating to a static fetcher and
// promoting to a headless one when the heuristic fires.
type Fetcher struct {
	static    feed.Fetcher
	headless  feed.Fetcher
	heuristic *heuristic
	logger    *zap.Logger
}

// New builds a promoting fetcher from the two delegates.
func New(static, headless feed.Fetcher, cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		static:    static,
		headless:  headless,
		heuristic: newHeuristic(cfg.BodyLengthThreshold),
		logger:    logger,
	}
}

// Fetch tries the static fetcher first. A static failure or a shell-looking
// snapshot falls through to the headless fetcher.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (feed.Snapshot, error) {
	snapshot, err := f.static.Fetch(ctx, pageURL)
	if err != nil {
		f.logger.Debug("static fetch failed, promoting to headless",
			zap.String("page_url", pageURL),
			zap.Error(err),
		)
		return f.headless.Fetch(ctx, pageURL)
	}
	if f.heuristic.shouldPromote(snapshot.HTML) {
		f.logger.Debug("snapshot looks unrendered, promoting to headless",
			zap.String("page_url", pageURL),
			zap.Int("static_bytes", len(snapshot.HTML)),
		)
		return f.headless.Fetch(ctx, pageURL)
	}
	return snapshot, nil
}
