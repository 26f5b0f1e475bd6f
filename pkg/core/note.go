package core

import (
	"strings"
	"time"
)

// DefaultTitle is used when a note is saved with a blank title.
const DefaultTitle = "Untitled"

// Note is the central entity of the domain.
// It is owned by exactly one user and agnostic to the store that persists it.
type Note struct {
	ID         string    `json:"id" yaml:"id"`
	UserID     string    `json:"userId" yaml:"userId"`
	Title      string    `json:"title" yaml:"title"`
	Content    string    `json:"content" yaml:"content"`
	Tags       []string  `json:"tags" yaml:"tags"`
	Color      string    `json:"color" yaml:"color"`
	IsFavorite bool      `json:"isFavorite" yaml:"isFavorite"`
	IsArchived bool      `json:"isArchived" yaml:"isArchived"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// HasTag reports whether the note carries tag.
func (n Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the tag slice.
func (n Note) Clone() Note {
	if n.Tags != nil {
		n.Tags = append([]string(nil), n.Tags...)
	}
	return n
}

// NoteInput holds the user-editable fields of a new note.
type NoteInput struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	Color      string   `json:"color"`
	IsFavorite bool     `json:"isFavorite"`
	IsArchived bool     `json:"isArchived"`
}

// Normalize applies the defaults a note gets before it reaches the store.
func (in NoteInput) Normalize() NoteInput {
	in.Title = NormalizeTitle(in.Title)
	in.Tags = NormalizeTags(in.Tags)
	if in.Color == "" {
		in.Color = DefaultColor.Light
	}
	return in
}

// NewNote builds the record persisted on creation. Both timestamps are set to now.
func NewNote(id, userID string, in NoteInput, now time.Time) Note {
	in = in.Normalize()
	return Note{
		ID:         id,
		UserID:     userID,
		Title:      in.Title,
		Content:    in.Content,
		Tags:       in.Tags,
		Color:      in.Color,
		IsFavorite: in.IsFavorite,
		IsArchived: in.IsArchived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NotePatch is a partial update. Only non-nil fields change.
type NotePatch struct {
	Title      *string   `json:"title,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	Color      *string   `json:"color,omitempty"`
	IsFavorite *bool     `json:"isFavorite,omitempty"`
	IsArchived *bool     `json:"isArchived,omitempty"`
}

// IsEmpty reports whether the patch changes no field.
func (p NotePatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil &&
		p.Color == nil && p.IsFavorite == nil && p.IsArchived == nil
}

// Apply merges the patch into n and stamps UpdatedAt.
// ID, UserID and CreatedAt are never touched.
func (p NotePatch) Apply(n Note, now time.Time) Note {
	n = n.Clone()
	if p.Title != nil {
		n.Title = NormalizeTitle(*p.Title)
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Tags != nil {
		n.Tags = NormalizeTags(*p.Tags)
	}
	if p.Color != nil {
		n.Color = *p.Color
		if n.Color == "" {
			n.Color = DefaultColor.Light
		}
	}
	if p.IsFavorite != nil {
		n.IsFavorite = *p.IsFavorite
	}
	if p.IsArchived != nil {
		n.IsArchived = *p.IsArchived
	}
	n.UpdatedAt = now
	return n
}

// NormalizeTitle trims the title and falls back to DefaultTitle.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle
	}
	return title
}

// NormalizeTags trims labels, drops empty ones and removes duplicates
// while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Color is a palette entry with its light and dark display values.
type Color struct {
	Name  string `json:"name"`
	Light string `json:"value"`
	Dark  string `json:"dark"`
}

// DefaultColor is the first palette entry.
var DefaultColor = Palette[0]

// Palette lists the colors a note may take.
var Palette = []Color{
	{Name: "Default", Light: "#ffffff", Dark: "#1f1f1f"},
	{Name: "Yellow", Light: "#fef3c7", Dark: "#451a03"},
	{Name: "Green", Light: "#d1fae5", Dark: "#064e3b"},
	{Name: "Blue", Light: "#dbeafe", Dark: "#1e3a8a"},
	{Name: "Purple", Light: "#e9d5ff", Dark: "#581c87"},
	{Name: "Pink", Light: "#fce7f3", Dark: "#831843"},
	{Name: "Orange", Light: "#fed7aa", Dark: "#9a3412"},
	{Name: "Red", Light: "#fecaca", Dark: "#991b1b"},
}

// LookupColor finds a palette entry by name (case-insensitive) or by its light value.
func LookupColor(key string) (Color, bool) {
	for _, c := range Palette {
		if strings.EqualFold(c.Name, key) || strings.EqualFold(c.Light, key) {
			return c, true
		}
	}
	return Color{}, false
}
