package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/jotter/pkg/core"
)

func TestSearch(t *testing.T) {
	notes := []core.Note{
		{ID: "1", Title: "Hello world"},
		{ID: "2", Title: "Goodbye"},
		{ID: "3", Title: "Groceries", Content: "<p>say HELLO to the baker</p>"},
		{ID: "4", Title: "Misc", Tags: []string{"hello-tag"}},
	}

	t.Run("Case Insensitive Title", func(t *testing.T) {
		got := core.Search(notes[:2], "hello")
		assert.Equal(t, []string{"1"}, ids(got))
	})

	t.Run("Title Content And Tags", func(t *testing.T) {
		got := core.Search(notes, "HeLLo")
		assert.Equal(t, []string{"1", "3", "4"}, ids(got))
	})

	t.Run("Empty Query Keeps Everything", func(t *testing.T) {
		assert.Equal(t, []string{"1", "2", "3", "4"}, ids(core.Search(notes, "")))
	})

	t.Run("Idempotent", func(t *testing.T) {
		for _, q := range []string{"", "o", "hello", "bye", "zzz"} {
			once := core.Search(notes, q)
			twice := core.Search(once, q)
			assert.Equal(t, ids(once), ids(twice), "query %q", q)
		}
	})
}

func TestAggregates(t *testing.T) {
	notes := scenarioNotes("u1")

	assert.Equal(t, core.NoteCounts{Total: 2, Favorites: 1, Archived: 1}, core.CountNotes(notes))
	// B is archived, so Personal only counts C.
	assert.Equal(t, map[string]int{"Work": 2, "Personal": 1}, core.CountTags(notes))
	assert.Equal(t, []string{"Personal", "Work"}, core.DistinctTags(notes))

	t.Run("Archived Notes Only Count As Archived", func(t *testing.T) {
		archived := []core.Note{
			{ID: "1", IsArchived: true, IsFavorite: true, Tags: []string{"x"}},
			{ID: "2", IsArchived: true},
		}
		assert.Equal(t, core.NoteCounts{Archived: 2}, core.CountNotes(archived))
		assert.Empty(t, core.CountTags(archived))
		assert.Equal(t, []string{"x"}, core.DistinctTags(archived))
	})
}

func TestDerive(t *testing.T) {
	catalog := scenarioNotes("u1")
	snapshot := []core.Note{catalog[0], catalog[2]}

	v := core.Derive(snapshot, catalog, core.NoteFilters{SearchQuery: "charl", SelectedTags: []string{"Work"}})

	assert.Equal(t, []string{"c"}, ids(v.Notes))
	assert.Equal(t, core.NoteCounts{Total: 2, Favorites: 1, Archived: 1}, v.Counts)
	assert.Equal(t, []string{"Personal", "Work"}, v.Tags)
	assert.Equal(t, "Work Notes", v.Title)
	assert.Equal(t, "Work Notes: 1 note", v.String())

	again := core.Derive(snapshot, catalog, core.NoteFilters{SearchQuery: "charl", SelectedTags: []string{"Work"}})
	assert.Equal(t, v, again)
}

func TestSuggestTags(t *testing.T) {
	known := []string{"Ideas", "Personal", "Work", "Workout"}
	assert.Equal(t, []string{"Workout"}, core.SuggestTags(known, []string{"Work"}, "work"))
	assert.Equal(t, []string{"Ideas", "Personal", "Work", "Workout"}, core.SuggestTags(known, nil, ""))
}
