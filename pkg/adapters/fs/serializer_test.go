package fs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/jotter/pkg/core"
)

func TestSerializers(t *testing.T) {
	n := core.Note{
		ID:         "n1",
		UserID:     "u1",
		Title:      "Groceries",
		Content:    "<p>milk</p>",
		Tags:       []string{"Home", "Errands"},
		Color:      "#dcfce7",
		IsFavorite: true,
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC),
	}

	for _, format := range []string{"json", "yaml", ".yml"} {
		t.Run(format, func(t *testing.T) {
			s, err := SerializerFor(format, true)
			require.NoError(t, err)

			data, err := s.Marshal(n)
			require.NoError(t, err)
			assert.Contains(t, string(data), "isFavorite")

			got, err := s.Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, n.Tags, got.Tags)
			assert.True(t, n.CreatedAt.Equal(got.CreatedAt))
			assert.True(t, n.UpdatedAt.Equal(got.UpdatedAt))
			assert.Equal(t, n.Title, got.Title)
			assert.True(t, got.IsFavorite)
		})
	}

	t.Run("Unknown Format", func(t *testing.T) {
		_, err := SerializerFor("csv", false)
		assert.Error(t, err)
	})
}

func TestSerializers_Strict(t *testing.T) {
	input := map[string]string{
		".json": `{"title": "x", "priority": 3}`,
		".yaml": "title: x\npriority: 3\n",
	}
	for ext, body := range input {
		t.Run(strings.TrimPrefix(ext, "."), func(t *testing.T) {
			lax := DefaultSerializers(false)[ext]
			n, err := lax.Unmarshal([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, "x", n.Title)

			strict := DefaultSerializers(true)[ext]
			_, err = strict.Unmarshal([]byte(body))
			assert.Error(t, err, "unknown fields are rejected in strict mode")
		})
	}
}
