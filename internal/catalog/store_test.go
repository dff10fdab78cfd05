package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/domain/mocks"
	"github.com/mmcdole/shelf/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*CatalogStore, *mocks.MockDirectoryRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockDirectoryRepository(ctrl)
	s := New(repo, nil, testLogger())
	t.Cleanup(func() { s.Close() })
	return s, repo
}

func book(id, genre string) domain.Book {
	return domain.Book{ID: id, Title: "Title " + id, Author: "Author " + id, Genre: genre, PublishedYear: 2001}
}

func ids(books []domain.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

func validForm() domain.NewBookForm {
	return domain.NewBookForm{
		Title:         "Dune",
		Author:        "Frank Herbert",
		Genre:         "Sci-Fi",
		PublishedYear: 1965,
		Description:   "Desert planet",
		ImageName:     "dune.jpg",
		Image:         strings.NewReader("jpeg"),
	}
}

func TestCatalogStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces collection", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().ListBooks(gomock.Any(), domain.Filter{}).Return([]domain.Book{book("1", "A"), book("2", "B")}, nil)
		repo.EXPECT().ListBooks(gomock.Any(), domain.Filter{Title: "x"}).Return([]domain.Book{book("3", "C")}, nil)

		_, err := s.Load(ctx, domain.Filter{})
		require.NoError(t, err)
		books, err := s.Load(ctx, domain.Filter{Title: "x"})
		require.NoError(t, err)

		assert.Equal(t, []string{"3"}, ids(books))
		assert.Equal(t, []string{"3"}, ids(s.Current()))
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().ListBooks(gomock.Any(), gomock.Any()).Return([]domain.Book{}, nil)

		books, err := s.Load(ctx, domain.Filter{Title: "nothing"})
		require.NoError(t, err)
		assert.Empty(t, books)
		assert.Empty(t, s.Current())
		assert.NoError(t, s.Status(domain.AreaSearch).Err)
	})

	t.Run("failure keeps previous collection", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().ListBooks(gomock.Any(), domain.Filter{}).Return([]domain.Book{book("1", "A")}, nil)
		repo.EXPECT().ListBooks(gomock.Any(), domain.Filter{Author: "x"}).
			Return(nil, domain.NetworkError("list books", domain.ErrServiceOffline))

		_, err := s.Load(ctx, domain.Filter{})
		require.NoError(t, err)
		_, err = s.Load(ctx, domain.Filter{Author: "x"})

		require.Error(t, err)
		assert.True(t, domain.IsNetwork(err))
		assert.Equal(t, []string{"1"}, ids(s.Current()))

		st := s.Status(domain.AreaSearch)
		assert.False(t, st.InFlight)
		assert.True(t, domain.IsNetwork(st.Err))
	})

	t.Run("error clears on next success", func(t *testing.T) {
		s, repo := newTestStore(t)
		gomock.InOrder(
			repo.EXPECT().ListBooks(gomock.Any(), gomock.Any()).Return(nil, domain.HTTPError("list books", 500)),
			repo.EXPECT().ListBooks(gomock.Any(), gomock.Any()).Return([]domain.Book{book("1", "A")}, nil),
		)

		_, err := s.Load(ctx, domain.Filter{})
		require.Error(t, err)
		assert.Equal(t, domain.KindHTTP, domain.KindOf(s.Status(domain.AreaSearch).Err))

		_, err = s.Load(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.NoError(t, s.Status(domain.AreaSearch).Err)
	})

	t.Run("caller cannot mutate collection", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().ListBooks(gomock.Any(), gomock.Any()).Return([]domain.Book{book("1", "A")}, nil)

		books, err := s.Load(ctx, domain.Filter{})
		require.NoError(t, err)
		books[0].Title = "changed"

		assert.Equal(t, "Title 1", s.Current()[0].Title)
	})
}

func TestCatalogStore_LoadDiscardsStaleResponse(t *testing.T) {
	s, repo := newTestStore(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})

	repo.EXPECT().ListBooks(gomock.Any(), domain.Filter{Title: "old"}).
		DoAndReturn(func(context.Context, domain.Filter) ([]domain.Book, error) {
			close(entered)
			<-release
			return []domain.Book{book("old", "A")}, nil
		})
	repo.EXPECT().ListBooks(gomock.Any(), domain.Filter{Title: "new"}).
		Return([]domain.Book{book("new", "B")}, nil)

	type result struct {
		books []domain.Book
		err   error
	}
	done := make(chan result, 1)
	go func() {
		books, err := s.Load(ctx, domain.Filter{Title: "old"})
		done <- result{books, err}
	}()

	<-entered
	assert.True(t, s.Status(domain.AreaSearch).InFlight)

	books, err := s.Load(ctx, domain.Filter{Title: "new"})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(books))

	close(release)
	old := <-done

	assert.ErrorIs(t, old.err, domain.ErrStale)
	assert.Equal(t, []string{"old"}, ids(old.books))
	assert.Equal(t, []string{"new"}, ids(s.Current()))
	assert.False(t, s.Status(domain.AreaSearch).InFlight)
}

func TestCatalogStore_Views(t *testing.T) {
	s, repo := newTestStore(t)
	repo.EXPECT().ListBooks(gomock.Any(), gomock.Any()).Return([]domain.Book{
		book("1", "A"), book("2", "B"), book("3", "A"), book("4", "C"), book("5", "B"),
	}, nil)

	_, err := s.Load(context.Background(), domain.Filter{})
	require.NoError(t, err)

	assert.Equal(t, []string{"All", "A", "B", "C"}, s.DistinctGenres())
	assert.Equal(t, []string{"1", "3"}, ids(s.FilterByGenre("A")))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(s.FilterByGenre(domain.AllGenres)))
	assert.Empty(t, s.FilterByGenre("Poetry"))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(s.Recommendations(0)))
	assert.Equal(t, []string{"1", "2"}, ids(s.Recommendations(2)))
	assert.Len(t, s.Recommendations(50), 5)
}

func TestCatalogStore_ViewsOnEmptyCollection(t *testing.T) {
	s, _ := newTestStore(t)

	assert.Equal(t, []string{"All"}, s.DistinctGenres())
	assert.Empty(t, s.FilterByGenre(domain.AllGenres))
	assert.Empty(t, s.Recommendations(4))
}

func TestCatalogStore_LoadRecommendations(t *testing.T) {
	ctx := context.Background()

	t.Run("uses endpoint", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().Recommendations(gomock.Any(), 4).
			Return([]domain.Book{book("1", "A"), book("2", "A")}, nil)

		books, err := s.LoadRecommendations(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, ids(books))
		assert.Equal(t, []string{"1", "2"}, ids(s.Recommended()))
	})

	t.Run("falls back to list when endpoint is missing", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().Recommendations(gomock.Any(), 2).Return(nil, domain.HTTPError("recommendations", 404))
		repo.EXPECT().ListBooks(gomock.Any(), domain.Filter{Limit: 2}).
			Return([]domain.Book{book("1", "A"), book("2", "A"), book("3", "A")}, nil)

		books, err := s.LoadRecommendations(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, ids(books))
		assert.NoError(t, s.Status(domain.AreaRecommendations).Err)
	})

	t.Run("network error keeps previous data", func(t *testing.T) {
		s, repo := newTestStore(t)
		gomock.InOrder(
			repo.EXPECT().Recommendations(gomock.Any(), 4).Return([]domain.Book{book("1", "A")}, nil),
			repo.EXPECT().Recommendations(gomock.Any(), 4).
				Return(nil, domain.NetworkError("recommendations", domain.ErrServiceOffline)),
		)

		_, err := s.LoadRecommendations(ctx, 4)
		require.NoError(t, err)
		books, err := s.LoadRecommendations(ctx, 4)

		require.Error(t, err)
		assert.Nil(t, books)
		assert.Equal(t, []string{"1"}, ids(s.Recommended()))
		assert.True(t, domain.IsNetwork(s.Status(domain.AreaRecommendations).Err))
	})
}

func TestCatalogStore_LoadCategories(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to built-in list", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().Categories(gomock.Any()).Return(nil, domain.HTTPError("categories", 503))

		cats, err := s.LoadCategories(ctx)
		require.Error(t, err)
		assert.Equal(t, domain.DefaultCategories, cats)
	})

	t.Run("falls back to last known categories", func(t *testing.T) {
		s, repo := newTestStore(t)
		known := []domain.Category{{ID: "9", Name: "Poetry"}}
		gomock.InOrder(
			repo.EXPECT().Categories(gomock.Any()).Return(known, nil),
			repo.EXPECT().Categories(gomock.Any()).Return(nil, domain.NetworkError("categories", domain.ErrServiceOffline)),
		)

		_, err := s.LoadCategories(ctx)
		require.NoError(t, err)
		cats, err := s.LoadCategories(ctx)

		require.Error(t, err)
		assert.Equal(t, known, cats)
	})
}

func TestCatalogStore_AreasAreIndependent(t *testing.T) {
	s, repo := newTestStore(t)
	ctx := context.Background()

	repo.EXPECT().ListBooks(gomock.Any(), gomock.Any()).Return([]domain.Book{book("1", "A")}, nil)
	repo.EXPECT().Categories(gomock.Any()).Return(nil, domain.HTTPError("categories", 500))

	_, err := s.Load(ctx, domain.Filter{})
	require.NoError(t, err)
	_, err = s.LoadCategories(ctx)
	require.Error(t, err)

	assert.NoError(t, s.Status(domain.AreaSearch).Err)
	assert.Error(t, s.Status(domain.AreaCategories).Err)
	assert.Equal(t, []string{"1"}, ids(s.Current()))
	assert.Equal(t, AreaStatus{}, s.Status(domain.AreaSubmit))
}

func TestCatalogStore_Landing(t *testing.T) {
	s, repo := newTestStore(t)
	repo.EXPECT().Recommendations(gomock.Any(), 4).Return([]domain.Book{book("1", "A")}, nil)
	repo.EXPECT().Categories(gomock.Any()).Return(nil, domain.NetworkError("categories", domain.ErrServiceOffline))

	res := s.Landing(context.Background(), 4)

	assert.NoError(t, res.RecommendationsErr)
	assert.Equal(t, []string{"1"}, ids(res.Recommendations))
	assert.Error(t, res.CategoriesErr)
	assert.Equal(t, domain.DefaultCategories, res.Categories)
}

func TestCatalogStore_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates without touching collection", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().CreateBook(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, form domain.NewBookForm) (domain.Book, error) {
				return domain.Book{ID: "new", Title: form.Title, Author: form.Author}, nil
			})

		form := validForm()
		form.Title = "  Dune  "
		created, err := s.Submit(ctx, form)

		require.NoError(t, err)
		assert.Equal(t, "new", created.ID)
		assert.Equal(t, "Dune", created.Title)
		assert.Empty(t, s.Current())

		cached, ok := s.Cached("new")
		assert.True(t, ok)
		assert.Equal(t, "Dune", cached.Title)
	})

	t.Run("invalid form never reaches the service", func(t *testing.T) {
		s, _ := newTestStore(t)

		form := validForm()
		form.Title = " "
		form.PublishedYear = 1850
		_, err := s.Submit(ctx, form)

		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))

		var fe *FormError
		require.True(t, errors.As(err, &fe))
		assert.True(t, fe.Has("title"))
		assert.True(t, fe.Has("publishedYear"))
		assert.Equal(t, domain.KindValidation, domain.KindOf(s.Status(domain.AreaSubmit).Err))
	})

	t.Run("service failure is reported", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().CreateBook(gomock.Any(), gomock.Any()).Return(domain.Book{}, domain.HTTPError("create book", 422))

		_, err := s.Submit(ctx, validForm())
		require.Error(t, err)
		assert.Equal(t, domain.KindHTTP, domain.KindOf(err))
	})
}

func TestCatalogStore_FetchByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().GetBook(gomock.Any(), "42").Return(book("42", "A"), nil)

		b, err := s.FetchByID(ctx, " 42 ")
		require.NoError(t, err)
		assert.Equal(t, "42", b.ID)
	})

	t.Run("not found", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().GetBook(gomock.Any(), "missing").Return(domain.Book{}, domain.NotFoundError("get book", "missing"))

		_, err := s.FetchByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.True(t, domain.IsNotFound(s.Status(domain.AreaDetail).Err))
	})

	t.Run("empty id", func(t *testing.T) {
		s, _ := newTestStore(t)

		_, err := s.FetchByID(ctx, "")
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})
}

func TestCatalogStore_Update(t *testing.T) {
	ctx := context.Background()
	title := "New Title"

	t.Run("applies patch", func(t *testing.T) {
		s, repo := newTestStore(t)
		patch := domain.BookPatch{Title: &title}
		repo.EXPECT().UpdateBook(gomock.Any(), "1", patch).Return(domain.Book{ID: "1", Title: title}, nil)

		b, err := s.Update(ctx, "1", patch)
		require.NoError(t, err)
		assert.Equal(t, title, b.Title)
	})

	t.Run("empty patch", func(t *testing.T) {
		s, _ := newTestStore(t)

		_, err := s.Update(ctx, "1", domain.BookPatch{})
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("year out of range", func(t *testing.T) {
		s, _ := newTestStore(t)
		year := 2150

		_, err := s.Update(ctx, "1", domain.BookPatch{PublishedYear: &year})
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})
}

func TestCatalogStore_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted then already gone", func(t *testing.T) {
		s, repo := newTestStore(t)
		gomock.InOrder(
			repo.EXPECT().DeleteBook(gomock.Any(), "1").Return(nil),
			repo.EXPECT().DeleteBook(gomock.Any(), "1").Return(domain.NotFoundError("delete book", "1")),
		)

		outcome, err := s.Remove(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, domain.RemoveDeleted, outcome)

		outcome, err = s.Remove(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, domain.RemoveAlreadyGone, outcome)
		assert.NoError(t, s.Status(domain.AreaDetail).Err)
	})

	t.Run("other failures are errors", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().DeleteBook(gomock.Any(), "1").Return(domain.HTTPError("delete book", 500))

		_, err := s.Remove(ctx, "1")
		require.Error(t, err)
		assert.Equal(t, domain.KindHTTP, domain.KindOf(err))
	})
}

func TestCatalogStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the book", func(t *testing.T) {
		s, repo := newTestStore(t)
		b := book("1", "A")
		repo.EXPECT().SaveBook(gomock.Any(), b).Return(nil)

		require.NoError(t, s.Save(ctx, b))
		assert.NoError(t, s.Status(domain.AreaDetail).Err)
	})

	t.Run("failure is kept in the detail area", func(t *testing.T) {
		s, repo := newTestStore(t)
		repo.EXPECT().SaveBook(gomock.Any(), gomock.Any()).Return(domain.HTTPError("save book", 500))

		err := s.Save(ctx, book("1", "A"))
		require.Error(t, err)
		assert.Equal(t, domain.KindHTTP, domain.KindOf(err))
		assert.Equal(t, err, s.Status(domain.AreaDetail).Err)
	})

	t.Run("requires an id", func(t *testing.T) {
		s, _ := newTestStore(t)

		err := s.Save(ctx, domain.Book{Title: "No id"})
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})
}

func TestCatalogStore_ChangedRecordsDropCollectionSnapshots(t *testing.T) {
	ctx := context.Background()
	title := "Renamed"

	for _, tc := range []struct {
		name   string
		expect func(repo *mocks.MockDirectoryRepository)
		act    func(s *CatalogStore) error
	}{
		{
			name: "update",
			expect: func(repo *mocks.MockDirectoryRepository) {
				repo.EXPECT().UpdateBook(gomock.Any(), "1", gomock.Any()).Return(domain.Book{ID: "1", Title: title}, nil)
			},
			act: func(s *CatalogStore) error {
				_, err := s.Update(ctx, "1", domain.BookPatch{Title: &title})
				return err
			},
		},
		{
			name: "remove",
			expect: func(repo *mocks.MockDirectoryRepository) {
				repo.EXPECT().DeleteBook(gomock.Any(), "1").Return(nil)
			},
			act: func(s *CatalogStore) error {
				_, err := s.Remove(ctx, "1")
				return err
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			snapshots, err := store.NewSnapshotStore("", "")
			require.NoError(t, err)
			require.NoError(t, snapshots.SaveBooks(domain.AreaSearch, []domain.Book{book("1", "A"), book("2", "B")}))
			require.NoError(t, snapshots.SaveBooks(domain.AreaRecommendations, []domain.Book{book("1", "A")}))

			repo := mocks.NewMockDirectoryRepository(gomock.NewController(t))
			s := New(repo, snapshots, testLogger())
			tc.expect(repo)

			require.NoError(t, tc.act(s))

			_, ok := snapshots.GetBooks(domain.AreaSearch)
			assert.False(t, ok)
			_, ok = snapshots.GetBooks(domain.AreaRecommendations)
			assert.False(t, ok)
			assert.Equal(t, []string{"1", "2"}, ids(s.Current()), "in-memory collection is untouched")
		})
	}
}

func TestCatalogStore_CachedRecord(t *testing.T) {
	s, repo := newTestStore(t)
	repo.EXPECT().GetBook(gomock.Any(), "1").Return(book("1", "A"), nil)

	_, ok := s.Cached("1")
	assert.False(t, ok)

	_, err := s.FetchByID(context.Background(), "1")
	require.NoError(t, err)

	cached, ok := s.Cached("1")
	require.True(t, ok)
	assert.Equal(t, "Title 1", cached.Title)
}

func TestNew_PrimesFromSnapshot(t *testing.T) {
	snapshots, err := store.NewSnapshotStore("", "")
	require.NoError(t, err)
	require.NoError(t, snapshots.SaveBooks(domain.AreaSearch, []domain.Book{book("1", "A"), book("2", "B")}))
	require.NoError(t, snapshots.SaveCategories([]domain.Category{{ID: "1", Name: "Cached"}}))

	ctrl := gomock.NewController(t)
	s := New(mocks.NewMockDirectoryRepository(ctrl), snapshots, testLogger())

	assert.Equal(t, []string{"1", "2"}, ids(s.Current()))
	assert.Equal(t, []string{"All", "A", "B"}, s.DistinctGenres())
	assert.Equal(t, "Cached", s.Categories()[0].Name)
}
