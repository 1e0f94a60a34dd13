package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jmallory/pagefeed/internal/feed"
)

func TestSessionTableReplaceLookupRemove(t *testing.T) {
	t.Parallel()

	table := NewSessionTable()
	ctx := context.Background()

	if err := table.Replace(ctx, "admin1", "sess-1", time.Hour); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := table.Replace(ctx, "admin1", "sess-2", time.Hour); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	id, err := table.Lookup(ctx, "admin1")
	if err != nil || id != "sess-2" {
		t.Fatalf("Lookup() = %q, %v; want sess-2", id, err)
	}

	removed, err := table.Remove(ctx, "admin1")
	if err != nil || !removed {
		t.Fatalf("Remove() = %v, %v; want true", removed, err)
	}
	if _, err := table.Lookup(ctx, "admin1"); err != feed.ErrNotFound {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestSessionTableExpiry(t *testing.T) {
	t.Parallel()

	table := NewSessionTable()
	base := time.Unix(1700000000, 0).UTC()
	table.now = func() time.Time { return base }
	ctx := context.Background()

	if err := table.Replace(ctx, "admin1", "sess-1", time.Minute); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	base = base.Add(2 * time.Minute)

	if _, err := table.Lookup(ctx, "admin1"); err != feed.ErrNotFound {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}
