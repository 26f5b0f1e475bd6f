package core_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/jotter/pkg/core"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// scenarioNotes returns the A/B/C fixture:
// A(Work, fav), B(Personal, archived), C(Work+Personal).
func scenarioNotes(userID string) []core.Note {
	return []core.Note{
		{ID: "a", UserID: userID, Title: "Alpha", Tags: []string{"Work"}, IsFavorite: true,
			CreatedAt: epoch, UpdatedAt: epoch.Add(3 * time.Hour)},
		{ID: "b", UserID: userID, Title: "Bravo", Tags: []string{"Personal"}, IsArchived: true,
			CreatedAt: epoch.Add(time.Hour), UpdatedAt: epoch.Add(time.Hour)},
		{ID: "c", UserID: userID, Title: "Charlie", Tags: []string{"Work", "Personal"},
			CreatedAt: epoch.Add(2 * time.Hour), UpdatedAt: epoch.Add(2 * time.Hour)},
	}
}

func ids(notes []core.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID)
	}
	return out
}

func TestBuildQuery_Constraints(t *testing.T) {
	t.Run("Default Filters", func(t *testing.T) {
		q, err := core.BuildQuery("u1", core.DefaultFilters(), 0)
		require.NoError(t, err)

		assert.Equal(t, []core.Constraint{
			{Field: core.FieldUserID, Operator: core.OpEqual, Value: "u1"},
			{Field: core.FieldIsArchived, Operator: core.OpEqual, Value: false},
		}, q.Where)
		assert.Equal(t, core.Order{Field: core.FieldUpdatedAt, Direction: core.Descending}, q.OrderBy)
	})

	t.Run("All Filters", func(t *testing.T) {
		q, err := core.BuildQuery("u1", core.NoteFilters{
			SearchQuery:   "ignored",
			SelectedTags:  []string{"Work", "Home"},
			ShowFavorites: true,
			ShowArchived:  true,
			SortBy:        core.SortAlphabetical,
		}, 10)
		require.NoError(t, err)

		require.Len(t, q.Where, 4)
		assert.Equal(t, true, q.Where[1].Value)
		assert.Equal(t, core.Constraint{Field: core.FieldIsFavorite, Operator: core.OpEqual, Value: true}, q.Where[2])
		assert.Equal(t, core.OpArrayContainsAny, q.Where[3].Operator)
		assert.Equal(t, []string{"Work", "Home"}, q.Where[3].Value)
		assert.Equal(t, core.Order{Field: core.FieldTitle, Direction: core.Ascending}, q.OrderBy)
		assert.NotContains(t, q.String(), "ignored")
	})

	t.Run("Sort Options", func(t *testing.T) {
		cases := map[core.SortOption]core.Order{
			core.SortDateCreated:  {Field: core.FieldCreatedAt, Direction: core.Descending},
			core.SortDateUpdated:  {Field: core.FieldUpdatedAt, Direction: core.Descending},
			core.SortAlphabetical: {Field: core.FieldTitle, Direction: core.Ascending},
			"bogus":               {Field: core.FieldUpdatedAt, Direction: core.Descending},
		}
		for sortBy, want := range cases {
			q, err := core.BuildQuery("u1", core.NoteFilters{SortBy: sortBy}, 0)
			require.NoError(t, err)
			assert.Equal(t, want, q.OrderBy, "sortBy=%s", sortBy)
		}
	})

	t.Run("Requires User", func(t *testing.T) {
		_, err := core.BuildQuery("", core.DefaultFilters(), 0)
		assert.ErrorIs(t, err, core.ErrAuthRequired)
	})

	t.Run("Tag Ceiling", func(t *testing.T) {
		tags := make([]string, 11)
		for i := range tags {
			tags[i] = fmt.Sprintf("t%d", i)
		}
		_, err := core.BuildQuery("u1", core.NoteFilters{SelectedTags: tags}, 10)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrQueryConstraint))

		_, err = core.BuildQuery("u1", core.NoteFilters{SelectedTags: tags[:10]}, 10)
		assert.NoError(t, err)
	})
}

func TestQueryApply_Scenario(t *testing.T) {
	notes := scenarioNotes("u1")
	notes = append(notes, core.Note{ID: "x", UserID: "u2", Title: "Other user", Tags: []string{"Work"}})

	build := func(f core.NoteFilters) core.Query {
		q, err := core.BuildQuery("u1", f, 0)
		require.NoError(t, err)
		return q
	}

	assert.Equal(t, []string{"a"}, ids(build(core.NoteFilters{ShowFavorites: true}).Apply(notes)))
	assert.Equal(t, []string{"b"}, ids(build(core.NoteFilters{ShowArchived: true}).Apply(notes)))
	assert.Equal(t, []string{"a", "c"},
		ids(build(core.NoteFilters{SelectedTags: []string{"Work"}, SortBy: core.SortDateUpdated}).Apply(notes)))
	assert.Equal(t, []string{"c", "a"},
		ids(build(core.NoteFilters{SelectedTags: []string{"Work"}, SortBy: core.SortDateCreated}).Apply(notes)))
}

func TestQueryApply_Properties(t *testing.T) {
	var notes []core.Note
	titles := []string{"pear", "Apple", "banana", "apple", "Cherry", "date"}
	for i := 0; i < 24; i++ {
		notes = append(notes, core.Note{
			ID:         fmt.Sprintf("n%02d", i),
			UserID:     "u1",
			Title:      titles[i%len(titles)],
			Tags:       [][]string{{"a"}, {"b"}, {"a", "c"}, nil}[i%4],
			IsArchived: i%3 == 0,
			IsFavorite: i%2 == 0,
			CreatedAt:  epoch.Add(time.Duration((i*7)%24) * time.Hour),
			UpdatedAt:  epoch.Add(time.Duration((i*5)%24) * time.Minute),
		})
	}

	for _, archived := range []bool{false, true} {
		for _, sortBy := range []core.SortOption{core.SortDateCreated, core.SortDateUpdated, core.SortAlphabetical} {
			f := core.NoteFilters{ShowArchived: archived, SelectedTags: []string{"a", "b"}, SortBy: sortBy}
			q, err := core.BuildQuery("u1", f, 0)
			require.NoError(t, err)
			got := q.Apply(notes)
			require.NotEmpty(t, got)

			for i, n := range got {
				assert.Equal(t, archived, n.IsArchived, "archive flag must match the view")
				assert.True(t, n.HasTag("a") || n.HasTag("b"), "tags are ORed: %v", n.Tags)
				if i == 0 {
					continue
				}
				prev := got[i-1]
				switch sortBy {
				case core.SortAlphabetical:
					assert.LessOrEqual(t, prev.Title, n.Title)
				case core.SortDateCreated:
					assert.False(t, prev.CreatedAt.Before(n.CreatedAt))
				case core.SortDateUpdated:
					assert.False(t, prev.UpdatedAt.Before(n.UpdatedAt))
				}
			}
		}
	}
}

func TestQuery_ValidateAndEqual(t *testing.T) {
	q, err := core.BuildQuery("u1", core.NoteFilters{SelectedTags: []string{"x"}}, 0)
	require.NoError(t, err)
	require.NoError(t, q.Validate())

	same, _ := core.BuildQuery("u1", core.NoteFilters{SelectedTags: []string{"x"}}, 0)
	other, _ := core.BuildQuery("u1", core.NoteFilters{SelectedTags: []string{"y"}}, 0)
	assert.True(t, q.Equal(same))
	assert.False(t, q.Equal(other))
	assert.Equal(t, "u1", q.UserID())

	bad := core.Query{Where: []core.Constraint{{Field: core.Field("content"), Operator: core.OpEqual, Value: "x"}}}
	assert.ErrorIs(t, bad.Validate(), core.ErrQueryConstraint)

	bad = core.Query{Where: []core.Constraint{{Field: core.FieldTags, Operator: core.OpEqual, Value: "x"}}}
	assert.ErrorIs(t, bad.Validate(), core.ErrQueryConstraint)

	bad = core.Query{Where: []core.Constraint{{Field: core.FieldIsArchived, Operator: core.OpEqual, Value: "yes"}}}
	assert.ErrorIs(t, bad.Validate(), core.ErrQueryConstraint)
}
