// Package viewer holds the read/starred state of one reader and the pure
// filter functions deciding which items a view shows.
package viewer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"techfeed/models"
)

type View string

const (
	ViewNew     View = "new"
	ViewStarred View = "starred"
	ViewArchive View = "archive"
)

// WindowSize caps the number of rows materialized for display
const WindowSize = 300

var ErrInvalidView = errors.New("invalid view")

// Views lists every view in display order
var Views = []View{ViewNew, ViewStarred, ViewArchive}

func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	if lo.Contains(Views, v) {
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidView, s)
}

// IDSet is a set of item links
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Toggle adds id when absent and removes it when present. It reports whether
// id is in the set afterwards.
func (s IDSet) Toggle(id string) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// Sorted returns the members in a stable order
func (s IDSet) Sorted() []string {
	ids := lo.Keys(s)
	sort.Strings(ids)
	return ids
}

func (s IDSet) Clone() IDSet {
	return NewIDSet(lo.Keys(s)...)
}

// State is everything a view depends on. Items are expected to be sorted by
// publish date, newest first, as they are in the artifact.
type State struct {
	Items   []models.FeedItem
	Starred IDSet
	Read    IDSet
	View    View
	Search  string
}

// IsVisible applies the view predicate and then the search predicate
func IsVisible(state *State, item models.FeedItem) bool {
	switch state.View {
	case ViewStarred:
		if !state.Starred.Has(item.Link) {
			return false
		}
	case ViewArchive:
		if !state.Read.Has(item.Link) {
			return false
		}
	default:
		if state.Read.Has(item.Link) {
			return false
		}
	}

	return MatchesSearch(item, state.Search)
}

// MatchesSearch does a case-insensitive substring match against the title,
// the categories and the source name
func MatchesSearch(item models.FeedItem, search string) bool {
	if search == "" {
		return true
	}
	content := strings.ToLower(item.Title + " " + strings.Join(item.Categories, " ") + " " + item.Source)
	return strings.Contains(content, strings.ToLower(search))
}

// Filter returns every visible item in artifact order
func Filter(state *State) []models.FeedItem {
	return lo.Filter(state.Items, func(item models.FeedItem, _ int) bool {
		return IsVisible(state, item)
	})
}

// Window returns the first WindowSize visible items
func Window(state *State) []models.FeedItem {
	filtered := Filter(state)
	if len(filtered) > WindowSize {
		return filtered[:WindowSize]
	}
	return filtered
}
