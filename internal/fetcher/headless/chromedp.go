// Package headless contains fetchers that render JavaScript via a browser.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jmallory/pagefeed/internal/feed"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// ScrollCount is the number of scroll-to-bottom passes performed after
	// the initial render so lazily loaded entries appear in the DOM.
	ScrollCount int
	ScrollDelay time.Duration
}

// Fetcher implements feed.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.ScrollCount < 0 {
		cfg.ScrollCount = 0
	}
	if cfg.ScrollDelay <= 0 {
		cfg.ScrollDelay = 500 * time.Millisecond
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates to the page, scrolls to trigger lazy loading, and returns
// the fully rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (feed.Snapshot, error) {
	if err := f.acquire(ctx); err != nil {
		return feed.Snapshot{}, err
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	start := time.Now()
	html, finalURL, err := f.runHeadless(taskCtx, pageURL)
	if err != nil {
		return feed.Snapshot{}, &feed.FetchError{URL: pageURL, Err: err}
	}
	if finalURL == "" {
		finalURL = pageURL
	}

	return feed.Snapshot{
		URL:      finalURL,
		HTML:     []byte(html),
		Duration: time.Since(start),
	}, nil
}

func (f *Fetcher) runHeadless(ctx context.Context, pageURL string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
	}
	for i := 0; i < f.cfg.ScrollCount; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(f.cfg.ScrollDelay),
		)
	}
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}
