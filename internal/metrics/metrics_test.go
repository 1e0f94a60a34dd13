package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizePage(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://facebook.com/acme", "facebook.com"},
		{"standard https", "https://Facebook.com/acme", "facebook.com"},
		{"no scheme", "facebook.com/acme", "facebook.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizePage(tc.input); got != tc.expected {
				t.Errorf("SanitizePage(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	postsScrapedTotal = nil
	crawlJobsTotal = nil
	httpRequestsTotal = nil
	httpRequestDurationSeconds = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if postsScrapedTotal == nil || crawlJobsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	// A simple check to see if a metric can be used.
	postsScrapedTotal.WithLabelValues("facebook.com", "video").Inc()
	if val := testutil.ToFloat64(postsScrapedTotal); val != 1 {
		t.Errorf("Expected postsScrapedTotal to be 1, got %f", val)
	}
}

// Fuzz test for SanitizePage.
func FuzzSanitizePage(f *testing.F) {
	testcases := []string{"http://example.com", "https://facebook.com/acme", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizePage(orig)
		if sanitized == "" {
			t.Errorf("SanitizePage(%q) returned an empty string", orig)
		}
	})
}
