// Package blocklist rejects crawl submissions whose page host matches an
// operator-configured deny pattern.
package blocklist

import (
	"net/url"
	"strings"
)

// Blocklist stores exact hosts and suffix wildcards derived from
// configuration. Patterns of the form "*.example.com" or ".example.com"
// block the whole subtree; bare hosts block exactly. A nil Blocklist blocks
// nothing.
type Blocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

// New compiles the patterns. Empty or all-blank input yields nil, which is a
// valid blocklist that never blocks.
func New(patterns []string) *Blocklist {
	matcher := &Blocklist{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			suffix := strings.TrimPrefix(value, "*.")
			if suffix != "" {
				matcher.addSuffix(suffix)
			}
		case strings.HasPrefix(value, "."):
			suffix := strings.TrimPrefix(value, ".")
			if suffix != "" {
				matcher.addSuffix(suffix)
			}
		default:
			matcher.exact[value] = struct{}{}
		}
	}
	if len(matcher.exact) == 0 && len(matcher.suffixes) == 0 {
		return nil
	}
	return matcher
}

func (b *Blocklist) addSuffix(suffix string) {
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

// IsBlocked reports whether the host matches a deny pattern.
func (b *Blocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, exact := b.exact[host]; exact {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// IsBlockedURL parses the page URL and checks its hostname. Unparseable URLs
// are not blocked here; URL validation happens elsewhere.
func (b *Blocklist) IsBlockedURL(pageURL string) bool {
	if b == nil {
		return false
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return b.IsBlocked(u.Hostname())
}
