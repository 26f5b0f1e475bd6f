package core

import (
	"sort"
	"strconv"
	"strings"
)

// NoteCounts summarises the user's catalog for navigation badges.
type NoteCounts struct {
	Total     int `json:"total"`
	Favorites int `json:"favorites"`
	Archived  int `json:"archived"`
}

// View is what a session hands to its listeners after every snapshot.
type View struct {
	UserID    string         `json:"userId,omitempty"`
	Filters   NoteFilters    `json:"filters"`
	Title     string         `json:"title"`
	Notes     []Note         `json:"notes"`
	Counts    NoteCounts     `json:"counts"`
	TagCounts map[string]int `json:"tagCounts"`
	Tags      []string       `json:"tags"`
	// Ready is set once both the filtered result and the catalog have been delivered
	// for the current user and filters.
	Ready bool  `json:"ready"`
	Err   error `json:"-"`
}

// String implements lifecycle.Event.
func (v View) String() string {
	if v.Err != nil {
		return "view error: " + v.Err.Error()
	}
	return v.Title + ": " + pluralNotes(len(v.Notes))
}

func pluralNotes(n int) string {
	if n == 1 {
		return "1 note"
	}
	return strconv.Itoa(n) + " notes"
}

// MatchesSearch reports whether q is a case-insensitive substring of the
// note's title, content or any of its tags. An empty query matches everything.
func MatchesSearch(n Note, q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(n.Content), q) {
		return true
	}
	for _, t := range n.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// Search keeps the notes matching q, preserving their order.
func Search(notes []Note, q string) []Note {
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if MatchesSearch(n, q) {
			out = append(out, n)
		}
	}
	return out
}

// CountNotes computes the badge counts. Archived notes only count towards Archived.
func CountNotes(all []Note) NoteCounts {
	var c NoteCounts
	for _, n := range all {
		if n.IsArchived {
			c.Archived++
			continue
		}
		c.Total++
		if n.IsFavorite {
			c.Favorites++
		}
	}
	return c
}

// CountTags counts, per tag, the non-archived notes carrying it.
func CountTags(all []Note) map[string]int {
	counts := make(map[string]int)
	for _, n := range all {
		if n.IsArchived {
			continue
		}
		for _, t := range n.Tags {
			counts[t]++
		}
	}
	return counts
}

// DistinctTags returns every tag used by any note, sorted.
func DistinctTags(all []Note) []string {
	seen := make(map[string]struct{})
	for _, n := range all {
		for _, t := range n.Tags {
			seen[t] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// SuggestTags lists known tags not already in current that contain input, case-insensitively.
func SuggestTags(known, current []string, input string) []string {
	input = strings.ToLower(strings.TrimSpace(input))
	taken := make(map[string]struct{}, len(current))
	for _, t := range current {
		taken[t] = struct{}{}
	}
	var out []string
	for _, t := range known {
		if _, ok := taken[t]; ok {
			continue
		}
		if strings.Contains(strings.ToLower(t), input) {
			out = append(out, t)
		}
	}
	return out
}

// Derive computes the displayed view from the latest snapshot and the user's
// catalog. It has no hidden state and can be recomputed on every push.
func Derive(snapshot, catalog []Note, f NoteFilters) View {
	return View{
		Filters:   f.Clone(),
		Title:     f.Title(),
		Notes:     Search(snapshot, f.SearchQuery),
		Counts:    CountNotes(catalog),
		TagCounts: CountTags(catalog),
		Tags:      DistinctTags(catalog),
	}
}
