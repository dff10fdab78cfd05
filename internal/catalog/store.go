package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/store"
)

// AreaStatus is the observable state of one area
type AreaStatus struct {
	InFlight bool
	Err      error // Last settled error, kept until the next attempt settles
}

// areaState tracks request sequence numbers for one area.
// A response is current only if its sequence equals issued.
type areaState struct {
	issued  uint64
	settled uint64
	err     error
}

// CatalogStore holds the most recently fetched collection and derives
// genre and recommendation views from it. It is safe for concurrent use.
type CatalogStore struct {
	repo      domain.DirectoryRepository
	snapshots domain.Store
	logger    *slog.Logger

	mu          sync.RWMutex
	books       []domain.Book
	recommended []domain.Book
	categories  []domain.Category
	areas       map[domain.Area]*areaState
}

// New creates a CatalogStore. A nil snapshots store keeps snapshots in memory.
// The current collection is primed from any snapshot already present.
func New(repo domain.DirectoryRepository, snapshots domain.Store, logger *slog.Logger) *CatalogStore {
	if logger == nil {
		logger = slog.Default()
	}
	if snapshots == nil {
		// Memory-only mode never fails
		snapshots, _ = store.NewSnapshotStore("", "")
	}

	s := &CatalogStore{
		repo:      repo,
		snapshots: snapshots,
		logger:    logger,
		books:     []domain.Book{},
		areas:     make(map[domain.Area]*areaState),
	}

	if books, ok := snapshots.GetBooks(domain.AreaSearch); ok {
		s.books = books
		logger.Debug("primed collection from snapshot", "count", len(books))
	}
	if books, ok := snapshots.GetBooks(domain.AreaRecommendations); ok {
		s.recommended = books
	}
	if cats, ok := snapshots.GetCategories(); ok {
		s.categories = cats
	}
	return s
}

// --- Area bookkeeping ---

func (s *CatalogStore) state(area domain.Area) *areaState {
	st, ok := s.areas[area]
	if !ok {
		st = &areaState{}
		s.areas[area] = st
	}
	return st
}

// begin issues the next sequence number for area
func (s *CatalogStore) begin(area domain.Area) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(area)
	st.issued++
	return st.issued
}

// settle records the outcome of request seq. install runs under the lock
// only when seq is still the latest issued for area. It reports whether the
// response was current.
func (s *CatalogStore) settle(area domain.Area, seq uint64, err error, install func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(area)
	if seq != st.issued {
		s.logger.Debug("discarding stale response", "area", area, "seq", seq, "latest", st.issued)
		return false
	}
	st.settled = seq
	st.err = err
	if install != nil {
		install()
	}
	return true
}

// Status returns whether area has a request in flight and its last error
func (s *CatalogStore) Status(area domain.Area) AreaStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.areas[area]
	if !ok {
		return AreaStatus{}
	}
	return AreaStatus{InFlight: st.issued > st.settled, Err: st.err}
}

// --- Collection ---

// Load fetches the books matching filter and replaces the current collection.
// On failure the previous collection is kept. A response overtaken by a newer
// Load is returned with domain.ErrStale and not installed.
func (s *CatalogStore) Load(ctx context.Context, filter domain.Filter) ([]domain.Book, error) {
	seq := s.begin(domain.AreaSearch)

	books, err := s.repo.ListBooks(ctx, filter)
	if err == nil && books == nil {
		books = []domain.Book{}
	}

	current := s.settle(domain.AreaSearch, seq, err, func() {
		if err == nil {
			s.books = books
		}
	})
	if !current {
		return books, domain.ErrStale
	}
	if err != nil {
		s.logger.Error("failed to load books", "error", err, "filter", filter)
		return nil, err
	}

	if err := s.snapshots.SaveBooks(domain.AreaSearch, books); err != nil {
		s.logger.Error("failed to save collection snapshot", "error", err)
	}
	s.logger.Debug("loaded books", "count", len(books))
	return cloneBooks(books), nil
}

// Current returns a copy of the current collection
func (s *CatalogStore) Current() []domain.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBooks(s.books)
}

// DistinctGenres returns "All" followed by the collection's genres in first-seen order
func (s *CatalogStore) DistinctGenres() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return DistinctGenres(s.books)
}

// FilterByGenre returns the collection's books of genre, preserving order
func (s *CatalogStore) FilterByGenre(genre string) []domain.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if genre == domain.AllGenres {
		return cloneBooks(s.books)
	}
	return FilterByGenre(s.books, genre)
}

// Recommendations returns the first limit books of the collection
func (s *CatalogStore) Recommendations(limit int) []domain.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Prefix(s.books, limit)
}

// --- Recommendations area ---

// LoadRecommendations asks the service for recommended books. When the
// endpoint fails without a network error, it falls back to a limited list
// sliced client-side. On failure the previous recommendations are kept.
func (s *CatalogStore) LoadRecommendations(ctx context.Context, limit int) ([]domain.Book, error) {
	if limit <= 0 {
		limit = domain.DefaultRecommendationLimit
	}
	seq := s.begin(domain.AreaRecommendations)

	books, err := s.repo.Recommendations(ctx, limit)
	if err != nil && !domain.IsNetwork(err) && ctx.Err() == nil {
		s.logger.Debug("recommendations endpoint failed, falling back to list", "error", err)
		all, ferr := s.repo.ListBooks(ctx, domain.Filter{Limit: limit})
		if ferr == nil {
			books, err = all, nil
		} else {
			err = ferr
		}
	}
	if err == nil {
		books = Prefix(books, limit)
	}

	current := s.settle(domain.AreaRecommendations, seq, err, func() {
		if err == nil {
			s.recommended = books
		}
	})
	if !current {
		return books, domain.ErrStale
	}
	if err != nil {
		s.logger.Error("failed to load recommendations", "error", err)
		return nil, err
	}

	if err := s.snapshots.SaveBooks(domain.AreaRecommendations, books); err != nil {
		s.logger.Error("failed to save recommendations snapshot", "error", err)
	}
	return cloneBooks(books), nil
}

// Recommended returns the last successfully loaded recommendations
func (s *CatalogStore) Recommended() []domain.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBooks(s.recommended)
}

// --- Categories area ---

// LoadCategories fetches the browsable categories. On failure it returns the
// last known categories (or the built-in list) together with the error.
func (s *CatalogStore) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	seq := s.begin(domain.AreaCategories)

	cats, err := s.repo.Categories(ctx)

	current := s.settle(domain.AreaCategories, seq, err, func() {
		if err == nil {
			s.categories = cats
		}
	})
	if !current {
		return cats, domain.ErrStale
	}
	if err != nil {
		s.logger.Warn("failed to load categories, using fallback", "error", err)
		return s.Categories(), err
	}

	if err := s.snapshots.SaveCategories(cats); err != nil {
		s.logger.Error("failed to save categories snapshot", "error", err)
	}
	return cloneCategories(cats), nil
}

// Categories returns the last known categories, or domain.DefaultCategories
func (s *CatalogStore) Categories() []domain.Category {
	s.mu.RLock()
	cats := s.categories
	s.mu.RUnlock()

	if len(cats) > 0 {
		return cloneCategories(cats)
	}
	if cached, ok := s.snapshots.GetCategories(); ok && len(cached) > 0 {
		return cached
	}
	return cloneCategories(domain.DefaultCategories)
}

// --- Records ---

// Submit validates form and creates the book. The created record is
// returned but not inserted into the current collection.
func (s *CatalogStore) Submit(ctx context.Context, form domain.NewBookForm) (domain.Book, error) {
	seq := s.begin(domain.AreaSubmit)

	form = NormalizeForm(form)
	if verr := ValidateForm(form); verr != nil {
		err := domain.ValidationError("submit", verr)
		s.settle(domain.AreaSubmit, seq, err, nil)
		return domain.Book{}, err
	}

	book, err := s.repo.CreateBook(ctx, form)
	s.settle(domain.AreaSubmit, seq, err, nil)
	if err != nil {
		s.logger.Error("failed to submit book", "error", err, "title", form.Title)
		return domain.Book{}, err
	}

	if err := s.snapshots.SaveBook(book); err != nil {
		s.logger.Error("failed to save record snapshot", "error", err, "id", book.ID)
	}
	s.logger.Info("submitted book", "id", book.ID, "title", book.Title)
	return book, nil
}

// FetchByID returns a single book from the service
func (s *CatalogStore) FetchByID(ctx context.Context, id string) (domain.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Book{}, domain.ValidationError("fetch", errors.New("id is required"))
	}
	seq := s.begin(domain.AreaDetail)

	book, err := s.repo.GetBook(ctx, id)
	s.settle(domain.AreaDetail, seq, err, nil)
	if err != nil {
		if domain.IsNotFound(err) {
			s.snapshots.InvalidateBook(id)
		}
		return domain.Book{}, err
	}

	if err := s.snapshots.SaveBook(book); err != nil {
		s.logger.Error("failed to save record snapshot", "error", err, "id", id)
	}
	return book, nil
}

// Cached returns the last fetched copy of a record, if any
func (s *CatalogStore) Cached(id string) (domain.Book, bool) {
	return s.snapshots.GetBook(id)
}

// Update applies a partial update and returns the record as the service now has it
func (s *CatalogStore) Update(ctx context.Context, id string, patch domain.BookPatch) (domain.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Book{}, domain.ValidationError("update", errors.New("id is required"))
	}
	if patch.IsEmpty() {
		return domain.Book{}, domain.ValidationError("update", errors.New("nothing to update"))
	}
	if verr := ValidatePatch(patch); verr != nil {
		return domain.Book{}, domain.ValidationError("update", verr)
	}
	seq := s.begin(domain.AreaDetail)

	book, err := s.repo.UpdateBook(ctx, id, patch)
	s.settle(domain.AreaDetail, seq, err, nil)
	if err != nil {
		s.logger.Error("failed to update book", "error", err, "id", id)
		return domain.Book{}, err
	}

	if err := s.snapshots.SaveBook(book); err != nil {
		s.logger.Error("failed to save record snapshot", "error", err, "id", id)
	}
	s.dropCollectionSnapshots()
	s.logger.Info("updated book", "id", id)
	return book, nil
}

// Remove deletes a book. A book that is already gone is a soft success
// reported as domain.RemoveAlreadyGone.
func (s *CatalogStore) Remove(ctx context.Context, id string) (domain.RemoveOutcome, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.RemoveDeleted, domain.ValidationError("remove", errors.New("id is required"))
	}
	seq := s.begin(domain.AreaDetail)

	err := s.repo.DeleteBook(ctx, id)
	if domain.IsNotFound(err) {
		s.settle(domain.AreaDetail, seq, nil, nil)
		s.snapshots.InvalidateBook(id)
		s.dropCollectionSnapshots()
		s.logger.Info("book already removed", "id", id)
		return domain.RemoveAlreadyGone, nil
	}
	s.settle(domain.AreaDetail, seq, err, nil)
	if err != nil {
		s.logger.Error("failed to remove book", "error", err, "id", id)
		return domain.RemoveDeleted, err
	}

	s.snapshots.InvalidateBook(id)
	s.dropCollectionSnapshots()
	s.logger.Info("removed book", "id", id)
	return domain.RemoveDeleted, nil
}

// Save asks the service to keep a copy of book in the reading list
func (s *CatalogStore) Save(ctx context.Context, book domain.Book) error {
	if strings.TrimSpace(book.ID) == "" {
		return domain.ValidationError("save", errors.New("id is required"))
	}
	seq := s.begin(domain.AreaDetail)

	err := s.repo.SaveBook(ctx, book)
	s.settle(domain.AreaDetail, seq, err, nil)
	if err != nil {
		s.logger.Error("failed to save book", "error", err, "id", book.ID)
		return err
	}
	s.logger.Info("saved book", "id", book.ID)
	return nil
}

// dropCollectionSnapshots forgets persisted collections once a record changed
// server-side. The in-memory views keep serving until the next load.
func (s *CatalogStore) dropCollectionSnapshots() {
	s.snapshots.InvalidateArea(domain.AreaSearch)
	s.snapshots.InvalidateArea(domain.AreaRecommendations)
}

// Invalidate drops every snapshot. The in-memory views are untouched
// until the next successful load.
func (s *CatalogStore) Invalidate() {
	s.snapshots.InvalidateAll()
	s.logger.Info("invalidated all snapshots")
}

// Close releases the snapshot store
func (s *CatalogStore) Close() error {
	return s.snapshots.Close()
}

func cloneBooks(books []domain.Book) []domain.Book {
	out := make([]domain.Book, len(books))
	copy(out, books)
	return out
}

func cloneCategories(cats []domain.Category) []domain.Category {
	out := make([]domain.Category, len(cats))
	copy(out, cats)
	return out
}
