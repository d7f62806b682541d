package viewer

import (
	"context"
	"time"

	"techfeed/models"
)

// Session is one reader's view over the artifact. Mutations of the link sets
// are written back to the store immediately and in full.
type Session struct {
	state     State
	store     Store
	namespace string
}

// NewSession loads the reader's link sets from store. Unreadable state starts
// empty.
func NewSession(ctx context.Context, items []models.FeedItem, store Store, namespace string) *Session {
	return &Session{
		state: State{
			Items:   items,
			Starred: LoadIDs(ctx, store, Key(namespace, StarredKey)),
			Read:    LoadIDs(ctx, store, Key(namespace, ReadKey)),
			View:    ViewNew,
		},
		store:     store,
		namespace: namespace,
	}
}

// State exposes the current state for read-only use
func (s *Session) State() *State {
	return &s.state
}

// ToggleStar flips the starred flag of link and persists the starred set.
// It reports whether link is starred afterwards.
func (s *Session) ToggleStar(ctx context.Context, link string) (bool, error) {
	starred := s.state.Starred.Toggle(link)
	return starred, SaveIDs(ctx, s.store, Key(s.namespace, StarredKey), s.state.Starred)
}

// ToggleRead flips the read flag of link and persists the read set.
// It reports whether link is read afterwards.
func (s *Session) ToggleRead(ctx context.Context, link string) (bool, error) {
	read := s.state.Read.Toggle(link)
	return read, SaveIDs(ctx, s.store, Key(s.namespace, ReadKey), s.state.Read)
}

func (s *Session) SetView(view View) {
	s.state.View = view
}

func (s *Session) SetSearch(text string) {
	s.state.Search = text
}

// FilterTag searches for a tag, as clicking a tag in the list does
func (s *Session) FilterTag(tag string) {
	s.state.Search = tag
}

func (s *Session) SetItems(items []models.FeedItem) {
	s.state.Items = items
}

func (s *Session) Filtered() []models.FeedItem {
	return Filter(&s.state)
}

func (s *Session) Rows(now time.Time) []models.Row {
	return Rows(&s.state, now)
}
