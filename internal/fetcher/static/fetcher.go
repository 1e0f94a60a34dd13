// Package staticfetcher implements feed.Fetcher with a plain HTTP GET via
// gocolly. It is the cheap path for pages whose markup is server-rendered;
// pages that hydrate client-side need the headless fetcher instead.
package staticfetcher

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmallory/pagefeed/internal/feed"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher implements feed.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET and returns the response body as the page
// snapshot.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (feed.Snapshot, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		snapshot feed.Snapshot
		fetchErr error
	)
	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		snapshot = feed.Snapshot{
			URL:      r.Request.URL.String(),
			HTML:     append([]byte(nil), r.Body...),
			Duration: time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return feed.Snapshot{}, &feed.FetchError{URL: pageURL, Err: ctx.Err()}
	case err := <-done:
		if err != nil {
			return feed.Snapshot{}, &feed.FetchError{URL: pageURL, Err: err}
		}
		if fetchErr != nil {
			return feed.Snapshot{}, &feed.FetchError{URL: pageURL, Err: fetchErr}
		}
		return snapshot, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
