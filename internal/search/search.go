package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sfuzzy "github.com/sahilm/fuzzy"

	"github.com/mmcdole/shelf/internal/domain"
)

// Result is a matched book with metadata for highlighting
type Result struct {
	Book           domain.Book
	Index          int   // Position in the searched slice
	MatchedIndexes []int // Character positions in the title that matched
}

// titleIndex implements sahilm/fuzzy.Source over book titles
type titleIndex struct {
	books []domain.Book
}

func (idx titleIndex) String(i int) string { return idx.books[i].Title }
func (idx titleIndex) Len() int            { return len(idx.books) }

// Filter narrows books to those matching query on field, best match first.
// An empty query returns every book in order with no highlights.
func Filter(books []domain.Book, query string, field domain.SearchField) []Result {
	query = strings.TrimSpace(query)
	if query == "" {
		results := make([]Result, len(books))
		for i, b := range books {
			results[i] = Result{Book: b, Index: i}
		}
		return results
	}

	switch field {
	case domain.SearchByAuthor:
		return byAuthor(books, query)
	case domain.SearchByID:
		return byID(books, query)
	default:
		return byTitle(books, query)
	}
}

func byTitle(books []domain.Book, query string) []Result {
	matches := sfuzzy.FindFrom(query, titleIndex{books: books})
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			Book:           books[m.Index],
			Index:          m.Index,
			MatchedIndexes: m.MatchedIndexes,
		})
	}
	return results
}

func byAuthor(books []domain.Book, query string) []Result {
	authors := make([]string, len(books))
	for i, b := range books {
		authors[i] = b.Author
	}

	ranks := fuzzy.RankFindNormalizedFold(query, authors)
	sort.Stable(ranks)

	results := make([]Result, 0, len(ranks))
	for _, r := range ranks {
		results = append(results, Result{
			Book:  books[r.OriginalIndex],
			Index: r.OriginalIndex,
		})
	}
	return results
}

// IDs are opaque, so only a case-insensitive prefix is useful
func byID(books []domain.Book, query string) []Result {
	query = strings.ToLower(query)
	var results []Result
	for i, b := range books {
		if strings.HasPrefix(strings.ToLower(b.ID), query) {
			results = append(results, Result{Book: b, Index: i})
		}
	}
	return results
}
