// Package waitlist owns waitlist position integrity. Every code path that
// assigns a position goes through Renumber or Append so positions stay
// exactly 1..N.
package waitlist

import (
	"sort"
	"time"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/model"
)

// Renumber returns a copy of entries ordered by original position and
// reassigned positions 1..N. Ties on position fall back to waitlistedAt and
// then userID so the result never depends on input order.
func Renumber(entries []model.Membership) []model.Membership {
	out := make([]model.Membership, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		at, bt := waitlistedAt(a), waitlistedAt(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return a.UserID < b.UserID
	})

	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// Append renumbers entries and places m at the tail. The returned slice is
// the full new waitlist; its last element is m with its assigned position.
func Append(entries []model.Membership, m model.Membership) []model.Membership {
	ordered := Renumber(entries)
	m.Position = len(ordered) + 1
	return append(ordered, m)
}

// Remove drops userID from entries and renumbers the remainder. The second
// return value reports whether userID was present.
func Remove(entries []model.Membership, userID string) ([]model.Membership, bool) {
	kept := make([]model.Membership, 0, len(entries))
	found := false
	for _, e := range entries {
		if e.UserID == userID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	return Renumber(kept), found
}

// PopFront removes the lowest-positioned entry and renumbers the rest.
// ok is false when entries is empty.
func PopFront(entries []model.Membership) (head model.Membership, rest []model.Membership, ok bool) {
	if len(entries) == 0 {
		return model.Membership{}, nil, false
	}
	ordered := Renumber(entries)
	return ordered[0], Renumber(ordered[1:]), true
}

// Contiguous reports whether entries hold exactly positions 1..N.
func Contiguous(entries []model.Membership) bool {
	seen := make([]bool, len(entries)+1)
	for _, e := range entries {
		if e.Position < 1 || e.Position > len(entries) || seen[e.Position] {
			return false
		}
		seen[e.Position] = true
	}
	return true
}

func waitlistedAt(m model.Membership) time.Time {
	if m.WaitlistedAt == nil {
		return time.Time{}
	}
	return *m.WaitlistedAt
}
