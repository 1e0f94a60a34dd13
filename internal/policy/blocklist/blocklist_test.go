package blocklist

import "testing"

func TestBlocklist(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		bl := New([]string{"example.org"})
		if bl == nil {
			t.Fatalf("expected blocklist to be created")
		}
		if !bl.IsBlocked("example.org") {
			t.Fatalf("expected example.org to be blocked")
		}
		if bl.IsBlocked("sub.example.org") {
			t.Fatalf("did not expect subdomains to match exact entry")
		}
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		bl := New([]string{"*.ru"})
		if bl == nil {
			t.Fatalf("expected blocklist to be created")
		}
		cases := []struct {
			host    string
			blocked bool
		}{
			{"example.ru", true},
			{"sub.domain.ru", true},
			{"ru", true},
			{"example.com", false},
		}
		for _, tc := range cases {
			if got := bl.IsBlocked(tc.host); got != tc.blocked {
				t.Fatalf("host %q blocked=%v, want %v", tc.host, got, tc.blocked)
			}
		}
	})

	t.Run("empty patterns yield nil", func(t *testing.T) {
		if bl := New([]string{"", "  "}); bl != nil {
			t.Fatalf("expected nil blocklist for blank patterns")
		}
	})

	t.Run("nil blocklist", func(t *testing.T) {
		var bl *Blocklist
		if bl.IsBlocked("anything") {
			t.Fatalf("nil blocklist should never block")
		}
		if bl.IsBlockedURL("https://anything.example") {
			t.Fatalf("nil blocklist should never block URLs")
		}
	})
}

func TestIsBlockedURL(t *testing.T) {
	bl := New([]string{"www.facebook.com", "*.internal"})

	cases := []struct {
		url     string
		blocked bool
	}{
		{"https://www.facebook.com/acme", true},
		{"https://www.facebook.com:443/acme", true},
		{"https://svc.internal/page", true},
		{"https://m.facebook.com/acme", false},
		{"://not-a-url", false},
	}
	for _, tc := range cases {
		if got := bl.IsBlockedURL(tc.url); got != tc.blocked {
			t.Fatalf("url %q blocked=%v, want %v", tc.url, got, tc.blocked)
		}
	}
}
