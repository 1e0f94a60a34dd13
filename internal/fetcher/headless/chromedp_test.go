package headless

import (
	"context"
	"testing"
	"time"
)

func TestNewChromedpLimiterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	fetcher, err := NewChromedp(Config{MaxParallel: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cap(fetcher.limiter) != 2 {
		t.Fatalf("expected limiter capacity 2, got %d", cap(fetcher.limiter))
	}
}

func TestNewChromedpDefaults(t *testing.T) {
	t.Parallel()

	fetcher, err := NewChromedp(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.cfg.NavigationTimeout != 45*time.Second {
		t.Fatalf("expected default nav timeout, got %v", fetcher.cfg.NavigationTimeout)
	}
	if fetcher.cfg.ScrollDelay != 500*time.Millisecond {
		t.Fatalf("expected default scroll delay, got %v", fetcher.cfg.ScrollDelay)
	}
	if fetcher.limiter != nil {
		t.Fatal("expected unlimited fetcher to have no limiter")
	}
}

func TestAcquireRespectsCancellation(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{limiter: make(chan struct{}, 1)}
	if err := fetcher.acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := fetcher.acquire(ctx); err == nil {
		t.Fatal("expected error when slot wait is canceled")
	}

	fetcher.release()
	if err := fetcher.acquire(context.Background()); err != nil {
		t.Fatalf("expected slot to be free after release: %v", err)
	}
}

func TestNoopFetcherError(t *testing.T) {
	t.Parallel()

	fetcher := NewNoop()
	if _, err := fetcher.Fetch(context.Background(), "https://www.facebook.com/acme"); err == nil {
		t.Fatal("expected error from noop fetcher")
	}
}
