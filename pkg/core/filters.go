package core

import (
	"fmt"
	"slices"
)

// SortOption selects the single ordering applied to a query.
type SortOption string

const (
	SortDateCreated  SortOption = "dateCreated"
	SortDateUpdated  SortOption = "dateUpdated"
	SortAlphabetical SortOption = "alphabetical"
)

// Label returns the human readable name of the option.
func (s SortOption) Label() string {
	switch s {
	case SortDateCreated:
		return "Date created"
	case SortAlphabetical:
		return "Alphabetical"
	default:
		return "Date updated"
	}
}

// ParseSortOption validates a sort name.
func ParseSortOption(s string) (SortOption, error) {
	switch SortOption(s) {
	case SortDateCreated, SortDateUpdated, SortAlphabetical:
		return SortOption(s), nil
	case "":
		return SortDateUpdated, nil
	}
	return "", fmt.Errorf("unknown sort option %q (want dateCreated, dateUpdated or alphabetical)", s)
}

// NoteFilters is the transient view state of a session. It is never persisted.
type NoteFilters struct {
	SearchQuery   string     `json:"searchQuery"`
	SelectedTags  []string   `json:"selectedTags"`
	ShowFavorites bool       `json:"showFavorites"`
	ShowArchived  bool       `json:"showArchived"`
	SortBy        SortOption `json:"sortBy"`
}

// DefaultFilters returns the filters a new session starts with.
func DefaultFilters() NoteFilters {
	return NoteFilters{SortBy: SortDateUpdated}
}

// Equal compares two filter sets field by field. Tag order matters,
// since it is carried into the query as given.
func (f NoteFilters) Equal(o NoteFilters) bool {
	return f.SearchQuery == o.SearchQuery &&
		f.ShowFavorites == o.ShowFavorites &&
		f.ShowArchived == o.ShowArchived &&
		f.SortBy == o.SortBy &&
		slices.Equal(f.SelectedTags, o.SelectedTags)
}

// Clone returns a copy that does not share the tag slice.
func (f NoteFilters) Clone() NoteFilters {
	if f.SelectedTags != nil {
		f.SelectedTags = append([]string(nil), f.SelectedTags...)
	}
	return f
}

// ToggleTag adds tag to the selection, or removes it when already selected.
func (f NoteFilters) ToggleTag(tag string) NoteFilters {
	f = f.Clone()
	if i := slices.Index(f.SelectedTags, tag); i >= 0 {
		f.SelectedTags = slices.Delete(f.SelectedTags, i, i+1)
		return f
	}
	f.SelectedTags = append(f.SelectedTags, tag)
	return f
}

// Title names the view the filters describe.
func (f NoteFilters) Title() string {
	switch {
	case f.ShowFavorites:
		return "Favourite Notes"
	case f.ShowArchived:
		return "Archived Notes"
	case len(f.SelectedTags) == 1:
		return f.SelectedTags[0] + " Notes"
	}
	return "All Notes"
}
