package core

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// DefaultMaxTagValues is the document store ceiling for values in a single
// array-contains-any clause.
const DefaultMaxTagValues = 30

// Field names a note attribute as the store sees it.
type Field string

const (
	FieldUserID     Field = "userId"
	FieldIsArchived Field = "isArchived"
	FieldIsFavorite Field = "isFavorite"
	FieldTags       Field = "tags"
	FieldTitle      Field = "title"
	FieldCreatedAt  Field = "createdAt"
	FieldUpdatedAt  Field = "updatedAt"
)

// Operator is a comparison understood by the store.
type Operator string

const (
	OpEqual            Operator = "=="
	OpArrayContainsAny Operator = "array-contains-any"
)

// Direction of an ordering.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Constraint is a single server-side filter clause.
type Constraint struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"op"`
	Value    any      `json:"value"`
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

// Order is the single ordering clause of a query.
type Order struct {
	Field     Field     `json:"field"`
	Direction Direction `json:"direction"`
}

// Query is the set of constraints issued for a live subscription.
// All Where clauses are ANDed; an array-contains-any clause is an OR within itself.
type Query struct {
	Where   []Constraint `json:"where"`
	OrderBy Order        `json:"orderBy"`
}

// BuildQuery translates filters into constraints scoped to userID.
//
// The archive flag is always constrained, so archived and non-archived notes
// never share a result set. SearchQuery is not part of the query: the store
// cannot evaluate it (see Search).
func BuildQuery(userID string, f NoteFilters, maxTagValues int) (Query, error) {
	if userID == "" {
		return Query{}, ErrAuthRequired
	}
	if maxTagValues <= 0 {
		maxTagValues = DefaultMaxTagValues
	}

	q := Query{
		Where: []Constraint{
			{Field: FieldUserID, Operator: OpEqual, Value: userID},
			{Field: FieldIsArchived, Operator: OpEqual, Value: f.ShowArchived},
		},
	}

	if f.ShowFavorites {
		q.Where = append(q.Where, Constraint{Field: FieldIsFavorite, Operator: OpEqual, Value: true})
	}

	if len(f.SelectedTags) > 0 {
		if len(f.SelectedTags) > maxTagValues {
			return Query{}, fmt.Errorf("%w: %d tags selected, the store accepts at most %d",
				ErrQueryConstraint, len(f.SelectedTags), maxTagValues)
		}
		tags := append([]string(nil), f.SelectedTags...)
		q.Where = append(q.Where, Constraint{Field: FieldTags, Operator: OpArrayContainsAny, Value: tags})
	}

	switch f.SortBy {
	case SortDateCreated:
		q.OrderBy = Order{Field: FieldCreatedAt, Direction: Descending}
	case SortAlphabetical:
		q.OrderBy = Order{Field: FieldTitle, Direction: Ascending}
	default:
		q.OrderBy = Order{Field: FieldUpdatedAt, Direction: Descending}
	}

	return q, nil
}

// CatalogQuery selects every note owned by userID, whatever its archive or favorite flag.
// Aggregates are computed over its results.
func CatalogQuery(userID string) (Query, error) {
	if userID == "" {
		return Query{}, ErrAuthRequired
	}
	return Query{
		Where:   []Constraint{{Field: FieldUserID, Operator: OpEqual, Value: userID}},
		OrderBy: Order{Field: FieldUpdatedAt, Direction: Descending},
	}, nil
}

// UserID returns the value of the userId equality clause, if any.
func (q Query) UserID() string {
	for _, c := range q.Where {
		if c.Field == FieldUserID && c.Operator == OpEqual {
			if s, ok := c.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// Validate rejects clauses a store cannot evaluate.
func (q Query) Validate() error {
	for _, c := range q.Where {
		switch c.Operator {
		case OpEqual:
			switch c.Field {
			case FieldUserID, FieldTitle:
				if _, ok := c.Value.(string); !ok {
					return fmt.Errorf("%w: %s expects a string", ErrQueryConstraint, c.Field)
				}
			case FieldIsArchived, FieldIsFavorite:
				if _, ok := c.Value.(bool); !ok {
					return fmt.Errorf("%w: %s expects a bool", ErrQueryConstraint, c.Field)
				}
			default:
				return fmt.Errorf("%w: equality on %s is not supported", ErrQueryConstraint, c.Field)
			}
		case OpArrayContainsAny:
			if c.Field != FieldTags {
				return fmt.Errorf("%w: %s is not an array field", ErrQueryConstraint, c.Field)
			}
			if _, ok := c.Value.([]string); !ok {
				return fmt.Errorf("%w: %s expects a list of strings", ErrQueryConstraint, c.Field)
			}
		default:
			return fmt.Errorf("%w: unknown operator %q", ErrQueryConstraint, c.Operator)
		}
	}
	switch q.OrderBy.Field {
	case "", FieldTitle, FieldCreatedAt, FieldUpdatedAt:
	default:
		return fmt.Errorf("%w: cannot order by %s", ErrQueryConstraint, q.OrderBy.Field)
	}
	return nil
}

// Matches evaluates every Where clause against n.
func (q Query) Matches(n Note) bool {
	for _, c := range q.Where {
		if !c.matches(n) {
			return false
		}
	}
	return true
}

func (c Constraint) matches(n Note) bool {
	switch c.Operator {
	case OpEqual:
		switch c.Field {
		case FieldUserID:
			return n.UserID == c.Value
		case FieldTitle:
			return n.Title == c.Value
		case FieldIsArchived:
			return n.IsArchived == c.Value
		case FieldIsFavorite:
			return n.IsFavorite == c.Value
		}
	case OpArrayContainsAny:
		want, _ := c.Value.([]string)
		for _, t := range want {
			if n.HasTag(t) {
				return true
			}
		}
	}
	return false
}

// Less reports whether a sorts before b under the query ordering.
// Ties are broken by ID so results are deterministic.
func (q Query) Less(a, b Note) bool {
	var cmp int
	switch q.OrderBy.Field {
	case FieldTitle:
		cmp = strings.Compare(a.Title, b.Title)
	case FieldCreatedAt:
		cmp = a.CreatedAt.Compare(b.CreatedAt)
	case FieldUpdatedAt:
		cmp = a.UpdatedAt.Compare(b.UpdatedAt)
	}
	if q.OrderBy.Direction == Descending {
		cmp = -cmp
	}
	if cmp != 0 {
		return cmp < 0
	}
	return a.ID < b.ID
}

// Apply filters and orders notes the way a store executing q would.
// The input slice is not modified.
func (q Query) Apply(notes []Note) []Note {
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if q.Matches(n) {
			out = append(out, n.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return q.Less(out[i], out[j]) })
	return out
}

// Equal compares two queries clause by clause.
func (q Query) Equal(o Query) bool {
	if q.OrderBy != o.OrderBy || len(q.Where) != len(o.Where) {
		return false
	}
	for i := range q.Where {
		a, b := q.Where[i], o.Where[i]
		if a.Field != b.Field || a.Operator != b.Operator {
			return false
		}
		at, aList := a.Value.([]string)
		bt, bList := b.Value.([]string)
		if aList || bList {
			if !slices.Equal(at, bt) {
				return false
			}
			continue
		}
		if a.Value != b.Value {
			return false
		}
	}
	return true
}

func (q Query) String() string {
	parts := make([]string, 0, len(q.Where)+1)
	for _, c := range q.Where {
		parts = append(parts, c.String())
	}
	if q.OrderBy.Field != "" {
		parts = append(parts, fmt.Sprintf("order by %s %s", q.OrderBy.Field, q.OrderBy.Direction))
	}
	return strings.Join(parts, " AND ")
}
