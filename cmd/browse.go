package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cqroot/prompt"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"techfeed/db"
	"techfeed/models"
	"techfeed/viewer"
)

const (
	actionList    = "List items"
	actionView    = "Switch view"
	actionSearch  = "Search"
	actionTag     = "Filter by tag"
	actionStar    = "Toggle star"
	actionRead    = "Toggle read"
	actionReload  = "Reload feed"
	actionQuit    = "Quit"
	loadFailedMsg = "Failed to load feed."
)

func browseCmd() *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse the artifact in the terminal",
		Description: `Reads the artifact from a file or an http(s) url and lets you switch
		between the new, starred and archive views, search, filter by tag and
		toggle starred and read flags.

		Starred and read links are saved in the database right away.`,
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.StringFlag{
				Name:    "feed",
				Aliases: []string{"f"},
				Value:   "public/feed.json",
				Usage:   "Artifact file path or http(s) url",
				EnvVars: []string{"TECHFEED_FEED"},
			},
			&cli.StringFlag{
				Name:    "user",
				Usage:   "Namespace for the stored state, empty for the shared keys",
				EnvVars: []string{"TECHFEED_USER"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "Timeout when reading the artifact over http",
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			if err := db.Migrate(database); err != nil {
				return err
			}
			store, err := db.NewStore(database)
			if err != nil {
				return err
			}
			defer store.Close()

			b := &browser{
				feed:   ctx.String("feed"),
				loader: viewer.NewLoader(ctx.Duration("timeout")),
			}
			b.session = viewer.NewSession(ctx.Context, nil, store, ctx.String("user"))
			b.reload(ctx.Context)

			err = b.loop(ctx.Context)
			if errors.Is(err, prompt.ErrUserQuit) {
				return nil
			}
			return err
		},
	}
}

type browser struct {
	feed    string
	loader  *viewer.Loader
	session *viewer.Session
	failed  bool
}

func (b *browser) load(ctx context.Context) ([]models.FeedItem, error) {
	if strings.HasPrefix(b.feed, "http://") || strings.HasPrefix(b.feed, "https://") {
		return b.loader.Load(ctx, b.feed)
	}
	return viewer.LoadFile(b.feed)
}

func (b *browser) reload(ctx context.Context) {
	items, err := b.load(ctx)
	b.failed = err != nil
	if err != nil {
		items = nil
	}
	b.session.SetItems(items)
	b.list()
}

func (b *browser) list() {
	if b.failed {
		fmt.Println(loadFailedMsg)
		return
	}

	state := b.session.State()
	rows := b.session.Rows(time.Now())
	fmt.Printf("\n[%s] %d of %d items", state.View, len(rows), len(b.session.Filtered()))
	if state.Search != "" {
		fmt.Printf(" matching %q", state.Search)
	}
	fmt.Println()

	for i, row := range rows {
		fmt.Printf("%3d. %s%s %s\n", i+1, marker(row), row.Title, row.Link)
		fmt.Printf("     %s · %s %s\n", row.Source, row.Age, strings.Join(lo.Map(row.Tags, func(tag string, _ int) string {
			return "#" + tag
		}), " "))
	}
}

func marker(row models.Row) string {
	switch {
	case row.Starred && row.Read:
		return "★ ✓ "
	case row.Starred:
		return "★ "
	case row.Read:
		return "✓ "
	}
	return ""
}

func (b *browser) loop(ctx context.Context) error {
	for {
		action, err := prompt.New().Ask("Action:").Choose([]string{
			actionList, actionView, actionSearch, actionTag,
			actionStar, actionRead, actionReload, actionQuit,
		})
		if err != nil {
			return err
		}

		switch action {
		case actionList:
			b.list()
		case actionView:
			choice, err := prompt.New().Ask("View:").Choose(lo.Map(viewer.Views, func(v viewer.View, _ int) string {
				return string(v)
			}))
			if err != nil {
				return err
			}
			view, err := viewer.ParseView(choice)
			if err != nil {
				return err
			}
			b.session.SetView(view)
			b.list()
		case actionSearch:
			text, err := prompt.New().Ask("Search:").Input(b.session.State().Search)
			if err != nil {
				return err
			}
			b.session.SetSearch(strings.TrimSpace(text))
			b.list()
		case actionTag:
			tags := b.visibleTags()
			if len(tags) == 0 {
				fmt.Println("No tags in the current view")
				continue
			}
			tag, err := prompt.New().Ask("Tag:").Choose(tags)
			if err != nil {
				return err
			}
			b.session.FilterTag(tag)
			b.list()
		case actionStar, actionRead:
			link, ok, err := b.pickItem()
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if action == actionStar {
				_, err = b.session.ToggleStar(ctx, link)
			} else {
				_, err = b.session.ToggleRead(ctx, link)
			}
			if err != nil {
				return err
			}
			b.list()
		case actionReload:
			b.reload(ctx)
		case actionQuit:
			return nil
		}
	}
}

// visibleTags lists the distinct display tags of the current window
func (b *browser) visibleTags() []string {
	rows := b.session.Rows(time.Now())
	return lo.Without(lo.Uniq(lo.FlatMap(rows, func(row models.Row, _ int) []string {
		return row.Tags
	})), "")
}

// pickItem lets the reader choose one item of the current window
func (b *browser) pickItem() (string, bool, error) {
	rows := b.session.Rows(time.Now())
	if len(rows) == 0 {
		fmt.Println("No items in the current view")
		return "", false, nil
	}

	choices := lo.Map(rows, func(row models.Row, i int) string {
		return fmt.Sprintf("%3d. %s%s", i+1, marker(row), row.Title)
	})
	choice, err := prompt.New().Ask("Item:").Choose(choices)
	if err != nil {
		return "", false, err
	}

	_, index, found := lo.FindIndexOf(choices, func(c string) bool {
		return c == choice
	})
	if !found {
		return "", false, nil
	}
	return rows[index].Link, true, nil
}
