// Package extract turns raw page snapshots into candidate post records using
// heuristic pattern matching. Extraction is pure: no I/O, no errors, malformed
// fragments are silently dropped.
package extract

import (
	"regexp"
	"strings"

	"github.com/jmallory/pagefeed/internal/feed"
)

// articleMarker is the structural boundary between post fragments in the
// rendered markup.
const articleMarker = `role="article"`

var (
	postURLPattern  = regexp.MustCompile(`href="(https://www\.facebook\.com/.+?/posts/\d+)"`)
	videoURLPattern = regexp.MustCompile(`src="([^"]+\.mp4)"`)
	imageURLPattern = regexp.MustCompile(`src="([^"]+\.(?:jpg|png|jpeg))"`)
	reelsPattern    = regexp.MustCompile(`(?i)reels`)
)

// Extractor parses snapshots into candidate posts. Identifiers are freshly
// generated per candidate rather than derived from content, so re-extracting
// the same underlying post yields a different UID; downstream deduplication
// keys on the UID only.
type Extractor struct {
	ids feed.IDGenerator
}

// New constructs an Extractor.
func New(ids feed.IDGenerator) *Extractor {
	return &Extractor{ids: ids}
}

// Extract splits the snapshot into article fragments and parses each one.
// Fragments without a permalink are skipped; that is a normal filtering
// outcome, not an error. At most maxPosts candidates are returned; a
// non-positive maxPosts means no cap.
func (e *Extractor) Extract(snapshot string, maxPosts int) []feed.Post {
	fragments := splitFragments(snapshot)
	var posts []feed.Post
	for _, fragment := range fragments {
		if maxPosts > 0 && len(posts) >= maxPosts {
			break
		}
		post, ok := e.parseFragment(fragment)
		if !ok {
			continue
		}
		posts = append(posts, post)
	}
	return posts
}

func splitFragments(snapshot string) []string {
	if snapshot == "" {
		return nil
	}
	return strings.Split(snapshot, articleMarker)
}

func (e *Extractor) parseFragment(fragment string) (feed.Post, bool) {
	permalink := postURLPattern.FindStringSubmatch(fragment)
	if permalink == nil {
		return feed.Post{}, false
	}
	uid, err := e.ids.NewID()
	if err != nil {
		// ID generation never fails in practice; treat it like a
		// malformed fragment rather than surfacing an error.
		return feed.Post{}, false
	}

	video := videoURLPattern.FindStringSubmatch(fragment)
	image := imageURLPattern.FindStringSubmatch(fragment)
	hasReels := reelsPattern.MatchString(fragment)

	post := feed.Post{
		UID:      uid,
		PostURL:  permalink[1],
		Category: classify(video != nil, hasReels, image != nil),
	}
	if video != nil {
		post.VideoURL = video[1]
	}
	if image != nil {
		post.ImageURL = image[1]
	}
	return post, true
}

// classify applies the fixed precedence order: video wins over reels wins over
// image wins over plain text.
func classify(hasVideo, hasReels, hasImage bool) feed.Category {
	switch {
	case hasVideo:
		return feed.CategoryVideo
	case hasReels:
		return feed.CategoryReels
	case hasImage:
		return feed.CategoryImage
	default:
		return feed.CategoryText
	}
}
