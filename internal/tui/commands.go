package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/shelf/internal/catalog"
	"github.com/mmcdole/shelf/internal/domain"
)

const (
	requestTimeout = 30 * time.Second
	statusLinger   = 4 * time.Second
)

// Command factories for async operations

// LoadBooksCmd replaces the collection with the books matching filter
func LoadBooksCmd(store *catalog.CatalogStore, filter domain.Filter) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		books, err := store.Load(ctx, filter)
		if errors.Is(err, domain.ErrStale) {
			return BooksLoadedMsg{Filter: filter, Stale: true}
		}
		return BooksLoadedMsg{Books: books, Filter: filter, Err: err}
	}
}

// LandingCmd loads recommendations and categories concurrently
func LandingCmd(store *catalog.CatalogStore, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		return LandingLoadedMsg{Result: store.Landing(ctx, limit)}
	}
}

// FetchBookCmd loads a single book for the detail pane
func FetchBookCmd(store *catalog.CatalogStore, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		book, err := store.FetchByID(ctx, id)
		return BookFetchedMsg{ID: id, Book: book, Err: err}
	}
}

// RemoveBookCmd deletes a book
func RemoveBookCmd(store *catalog.CatalogStore, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		outcome, err := store.Remove(ctx, id)
		return BookRemovedMsg{ID: id, Outcome: outcome, Err: err}
	}
}

// SaveBookCmd posts a book to the saved list
func SaveBookCmd(store *catalog.CatalogStore, book domain.Book) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		return BookSavedMsg{ID: book.ID, Err: store.Save(ctx, book)}
	}
}

// OpenImageCmd hands a cover URL to the external viewer
func OpenImageCmd(opener Opener, url string) tea.Cmd {
	return func() tea.Msg {
		return ImageOpenedMsg{URL: url, Err: opener.Launch(url)}
	}
}

// ClearStatusCmd clears the status line after a delay unless a newer message replaced it
func ClearStatusCmd(seq int) tea.Cmd {
	return tea.Tick(statusLinger, func(time.Time) tea.Msg {
		return ClearStatusMsg{Seq: seq}
	})
}
