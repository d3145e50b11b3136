package discussion

import (
	"math"
	"sort"
	"time"
)

// HotScore blends net approval and age: (up - down) * log10(hours + 1).
// A negative age (clock skew) counts as zero.
func HotScore(upvotes, downvotes int, age time.Duration) float64 {
	hours := age.Hours()
	if hours < 0 {
		hours = 0
	}
	return float64(upvotes-downvotes) * math.Log10(hours+1)
}

// SortPosts orders posts in place for the given mode (hot by default).
// Pinned posts always come first; ties are broken by creation time, newest first.
func SortPosts(posts []Post, mode string, now time.Time) {
	var less func(a, b *Post) (bool, bool) // (less, decided)
	switch mode {
	case SortNew:
		less = func(a, b *Post) (bool, bool) { return false, false }
	case SortTop:
		less = func(a, b *Post) (bool, bool) {
			if a.Upvotes != b.Upvotes {
				return a.Upvotes > b.Upvotes, true
			}
			return false, false
		}
	default:
		scores := make(map[string]float64, len(posts))
		for _, p := range posts {
			scores[p.ID] = HotScore(p.Upvotes, p.Downvotes, now.Sub(p.CreatedAt))
		}
		less = func(a, b *Post) (bool, bool) {
			sa, sb := scores[a.ID], scores[b.ID]
			if sa != sb {
				return sa > sb, true
			}
			return false, false
		}
	}

	sort.SliceStable(posts, func(i, j int) bool {
		a, b := &posts[i], &posts[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if l, ok := less(a, b); ok {
			return l
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
