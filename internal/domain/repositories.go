package domain

import (
	"context"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// DirectoryRepository provides access to the Book Directory Service.
// Implementations return *Error values classified by ErrorKind.
type DirectoryRepository interface {
	// ListBooks returns books matching the filter (all books for an empty filter)
	ListBooks(ctx context.Context, filter Filter) ([]Book, error)

	// Recommendations returns the service's recommended books
	Recommendations(ctx context.Context, limit int) ([]Book, error)

	// Categories returns the browsable categories
	Categories(ctx context.Context) ([]Category, error)

	// GetBook returns a single book by id
	GetBook(ctx context.Context, id string) (Book, error)

	// CreateBook submits a new book as multipart form data
	CreateBook(ctx context.Context, form NewBookForm) (Book, error)

	// UpdateBook applies a partial update
	UpdateBook(ctx context.Context, id string, patch BookPatch) (Book, error)

	// DeleteBook removes a book; a missing id is reported as KindNotFound
	DeleteBook(ctx context.Context, id string) error

	// SaveBook posts a book to the service's saved list
	SaveBook(ctx context.Context, book Book) error
}
