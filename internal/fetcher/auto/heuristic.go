package auto

import (
	"bytes"
	"strings"
)

// heuristic decides when a static snapshot is a JavaScript shell that needs a
// real browser to render its posts.
type heuristic struct {
	bodyLengthThreshold int
}

func newHeuristic(threshold int) *heuristic {
	if threshold <= 0 {
		threshold = 2048
	}
	return &heuristic{bodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

// shouldPromote reports whether the HTML warrants a headless re-fetch.
func (h *heuristic) shouldPromote(html []byte) bool {
	if len(html) == 0 {
		return true
	}
	if len(html) < h.bodyLengthThreshold && scriptDensityHigh(html) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(html, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script tags cover at least a quarter of
// the document.
func scriptDensityHigh(html []byte) bool {
	lower := strings.ToLower(string(html))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			// Script tag never closes; count the rest.
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	if scriptCoverage == 0 {
		return false
	}
	return scriptCoverage*100/total >= 25
}
