package catalog

import "github.com/mmcdole/shelf/internal/domain"

// DistinctGenres returns "All" followed by each genre in first-seen order
func DistinctGenres(books []domain.Book) []string {
	genres := []string{domain.AllGenres}
	seen := map[string]bool{domain.AllGenres: true}
	for _, b := range books {
		if seen[b.Genre] {
			continue
		}
		seen[b.Genre] = true
		genres = append(genres, b.Genre)
	}
	return genres
}

// FilterByGenre returns the books whose genre equals genre, in order.
// "All" returns books unchanged.
func FilterByGenre(books []domain.Book, genre string) []domain.Book {
	if genre == domain.AllGenres {
		return books
	}
	filtered := make([]domain.Book, 0)
	for _, b := range books {
		if b.Genre == genre {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// Prefix returns the first limit books. A non-positive limit means
// domain.DefaultRecommendationLimit.
func Prefix(books []domain.Book, limit int) []domain.Book {
	if limit <= 0 {
		limit = domain.DefaultRecommendationLimit
	}
	if len(books) < limit {
		limit = len(books)
	}
	out := make([]domain.Book, limit)
	copy(out, books[:limit])
	return out
}
