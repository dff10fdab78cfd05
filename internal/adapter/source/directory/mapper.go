package directory

import (
	"github.com/mmcdole/shelf/internal/domain"
)

// MapBook converts a wire book to a domain book. Text fields are kept as
// the service sent them.
func MapBook(d bookDTO) domain.Book {
	id := string(d.ID)
	if id == "" {
		id = string(d.MongoID)
	}
	return domain.Book{
		ID:            id,
		Title:         d.Title,
		Author:        d.Author,
		Genre:         d.Genre,
		PublishedYear: int(d.PublishedYear),
		Description:   d.Description,
		Image:         d.Image,
		Rating:        d.Rating,
	}
}

// MapBooks converts wire books, preserving service order
func MapBooks(dtos []bookDTO) []domain.Book {
	books := make([]domain.Book, 0, len(dtos))
	for _, d := range dtos {
		books = append(books, MapBook(d))
	}
	return books
}

// MapCategories converts wire categories
func MapCategories(dtos []categoryDTO) []domain.Category {
	cats := make([]domain.Category, 0, len(dtos))
	for _, d := range dtos {
		cats = append(cats, domain.Category{
			ID:    string(d.ID),
			Name:  d.Name,
			Image: d.Image,
		})
	}
	return cats
}
