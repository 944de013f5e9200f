package api

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Feed categories. Unknown values behave like CategoryAll.
const (
	CategoryAll     = "all"
	CategoryPublic  = "public"
	CategoryPrivate = "private"
	CategoryRecent  = "recent"
	CategoryPopular = "popular"
)

// Feed sort keys. Unknown values behave like SortCreated.
const (
	SortCreated  = "created"
	SortLikes    = "likes"
	SortComments = "comments"
	SortTitle    = "title"
)

// recentWindow is how far back the "recent" category reaches.
const recentWindow = 7 * 24 * time.Hour

// "popular" thresholds.
const (
	popularMinLikes    = 5
	popularMinComments = 3
)

// A FeedQuery describes one view over a post collection: a free-text
// search, a category filter and a sort key. Now anchors the "recent"
// window; the zero value means time.Now.
type FeedQuery struct {
	Search   string
	Category string
	Sort     string
	Now      time.Time
}

// titleCollator compares titles the way a user-facing list would,
// ignoring case. Collators are not safe for concurrent use, so each
// ApplyFeed call builds its own.
func titleCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase)
}

// ApplyFeed filters and sorts posts according to the query. It is
// pure: the input slice is never mutated and the result is newly
// allocated. Filtering happens before sorting, the sort is stable, so
// posts with equal sort keys keep their input order.
func ApplyFeed(posts []Post, q FeedQuery) []Post {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := make([]Post, 0, len(posts))
	search := strings.ToLower(strings.TrimSpace(q.Search))
	for _, p := range posts {
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		if !matchesCategory(p, q.Category, now) {
			continue
		}
		out = append(out, p)
	}

	switch q.Sort {
	case SortLikes:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Likes > out[j].Likes
		})
	case SortComments:
		sort.SliceStable(out, func(i, j int) bool {
			return len(out[i].Comments) > len(out[j].Comments)
		})
	case SortTitle:
		c := titleCollator()
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].Title, out[j].Title) < 0
		})
	default: // SortCreated
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}

	return out
}

// matchesSearch reports whether the lowercased search term appears in
// the post's title, content, author name, tags or crypto mentions.
func matchesSearch(p Post, search string) bool {
	if strings.Contains(strings.ToLower(p.Title), search) ||
		strings.Contains(strings.ToLower(p.Content), search) ||
		strings.Contains(strings.ToLower(p.Author.Username), search) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	for _, m := range p.CryptoMentions {
		if strings.Contains(strings.ToLower(m), search) {
			return true
		}
	}
	return false
}

func matchesCategory(p Post, category string, now time.Time) bool {
	switch category {
	case CategoryPublic:
		return p.IsPublic
	case CategoryPrivate:
		return !p.IsPublic
	case CategoryRecent:
		return !p.CreatedAt.Before(now.Add(-recentWindow))
	case CategoryPopular:
		return p.Likes >= popularMinLikes || len(p.Comments) >= popularMinComments
	default:
		return true
	}
}
