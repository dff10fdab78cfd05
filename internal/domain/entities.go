package domain

import (
	"fmt"
	"io"
	"strings"
)

// AllGenres is the synthetic genre meaning "no genre filter"
const AllGenres = "All"

// DefaultRecommendationLimit is used when callers pass a non-positive limit
const DefaultRecommendationLimit = 4

// Book is a single record as served by the Book Directory Service.
// Books are never mutated client-side; edits go through an Update round trip.
type Book struct {
	ID            string   `json:"id"`            // Assigned by the service
	Title         string   `json:"title"`         // Display title
	Author        string   `json:"author"`        // Author name
	Genre         string   `json:"genre"`         // Grouping/filter key
	PublishedYear int      `json:"publishedYear"` // Expected 1900-2099
	Description   string   `json:"description"`   // Free text
	Image         string   `json:"image"`         // File-host reference, resolved by ImageResolver
	Rating        *float64 `json:"rating,omitempty"`
}

// HasRating reports whether the service supplied a rating
func (b Book) HasRating() bool {
	return b.Rating != nil
}

// FormattedRating returns the rating as "4.5/5", or "" when absent
func (b Book) FormattedRating() string {
	if b.Rating == nil {
		return ""
	}
	return fmt.Sprintf("%.1f/5", *b.Rating)
}

// Byline returns "by Author", falling back for the service's "NA" placeholder
func (b Book) Byline() string {
	author := strings.TrimSpace(b.Author)
	if author == "" || author == "NA" {
		return "Author not specified"
	}
	return "by " + author
}

// GetID implements ListItem
func (b *Book) GetID() string { return b.ID }

// GetTitle implements ListItem
func (b *Book) GetTitle() string { return b.Title }

// GetDescription implements ListItem
func (b *Book) GetDescription() string {
	if b.PublishedYear > 0 {
		return fmt.Sprintf("%s · %d", b.Author, b.PublishedYear)
	}
	return b.Author
}

// Category is a browsable grouping served by /books/categories
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// DefaultCategories is shown when the service cannot be reached, so the
// category picker stays usable.
var DefaultCategories = []Category{
	{ID: "1", Name: "Money/Investing", Image: "/images/money.jpg"},
	{ID: "2", Name: "Design", Image: "/images/design.jpg"},
	{ID: "3", Name: "Business", Image: "/images/business.jpg"},
	{ID: "4", Name: "Self Improvement", Image: "/images/self-improvement.jpg"},
}

// SearchField selects which attribute a free-text search query targets
type SearchField int

const (
	SearchByTitle SearchField = iota
	SearchByAuthor
	SearchByID
)

// String returns the field name as shown in prompts
func (f SearchField) String() string {
	switch f {
	case SearchByAuthor:
		return "author"
	case SearchByID:
		return "id"
	default:
		return "title"
	}
}

// Next cycles title -> author -> id -> title
func (f SearchField) Next() SearchField {
	return (f + 1) % 3
}

// Filter carries the optional list/search parameters. The zero value
// requests the unfiltered collection.
type Filter struct {
	Title  string
	Author string
	Genre  string // sent as "category"
	ID     string
	Limit  int // 0 = service default
}

// IsEmpty reports whether no predicate is set
func (f Filter) IsEmpty() bool {
	return f.Title == "" && f.Author == "" && f.Genre == "" && f.ID == "" && f.Limit == 0
}

// FilterFor builds a Filter from a search query and a genre selection.
// The "All" genre adds no category predicate.
func FilterFor(field SearchField, query, genre string) Filter {
	var f Filter
	query = strings.TrimSpace(query)
	if query != "" {
		switch field {
		case SearchByAuthor:
			f.Author = query
		case SearchByID:
			f.ID = query
		default:
			f.Title = query
		}
	}
	if genre != "" && genre != AllGenres {
		f.Genre = genre
	}
	return f
}

// NewBookForm is the payload for creating a book. All fields are required.
type NewBookForm struct {
	Title         string    `form:"title" validate:"required"`
	Author        string    `form:"author" validate:"required"`
	Genre         string    `form:"genre" validate:"required"`
	PublishedYear int       `form:"publishedYear" validate:"min=1900,max=2099"`
	Description   string    `form:"description" validate:"required"`
	ImageName     string    `form:"image" validate:"required"`
	Image         io.Reader `form:"-" validate:"-"` // Checked separately; must be non-nil
}

// BookPatch carries the fields of a partial update. Nil fields are left untouched.
type BookPatch struct {
	Title         *string  `json:"title,omitempty"`
	Author        *string  `json:"author,omitempty"`
	Genre         *string  `json:"genre,omitempty"`
	PublishedYear *int     `json:"publishedYear,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p BookPatch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.Genre == nil &&
		p.PublishedYear == nil && p.Description == nil && p.Rating == nil
}

// RemoveOutcome distinguishes a real deletion from an already-deleted record
type RemoveOutcome int

const (
	RemoveDeleted RemoveOutcome = iota
	RemoveAlreadyGone
)

// String returns a user-facing message for the outcome
func (o RemoveOutcome) String() string {
	if o == RemoveAlreadyGone {
		return "Book not found. It may have already been deleted."
	}
	return "Book deleted successfully."
}
