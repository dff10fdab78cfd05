package tui

import (
	"github.com/mmcdole/shelf/internal/catalog"
	"github.com/mmcdole/shelf/internal/domain"
)

// Message types for the TUI

// BooksLoadedMsg signals that a Load settled
type BooksLoadedMsg struct {
	Books  []domain.Book
	Filter domain.Filter
	Err    error
	Stale  bool // Overtaken by a newer load; ignore
}

// LandingLoadedMsg signals that recommendations and categories settled
type LandingLoadedMsg struct {
	Result catalog.LandingResult
}

// BookFetchedMsg signals that a detail lookup settled
type BookFetchedMsg struct {
	ID   string
	Book domain.Book
	Err  error
}

// BookRemovedMsg signals that a delete settled
type BookRemovedMsg struct {
	ID      string
	Outcome domain.RemoveOutcome
	Err     error
}

// BookSavedMsg signals that a save settled
type BookSavedMsg struct {
	ID  string
	Err error
}

// ClearStatusMsg clears a transient status message
type ClearStatusMsg struct {
	Seq int
}

// ImageOpenedMsg signals that the viewer was started, or failed to start
type ImageOpenedMsg struct {
	URL string
	Err error
}
