package directory

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/shelf/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/v1", opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClient_ListBooks(t *testing.T) {
	t.Run("sends filter and decodes books", func(t *testing.T) {
		var got *http.Request
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r
			io.WriteString(w, `{"books":[
				{"id":"1","title":" Dune ","author":"Frank Herbert","genre":"Sci-Fi","publishedYear":1965},
				{"_id":"abc","title":"Emma","author":"Jane Austen","genre":"Classic","publishedYear":"1815","rating":4.5}
			]}`)
		}), Options{})

		books, err := c.ListBooks(context.Background(), domain.Filter{Title: "du", Genre: "Sci-Fi", Limit: 5})
		require.NoError(t, err)

		assert.Equal(t, "/api/v1/books", got.URL.Path)
		assert.Equal(t, "du", got.URL.Query().Get("title"))
		assert.Equal(t, "Sci-Fi", got.URL.Query().Get("category"))
		assert.Equal(t, "5", got.URL.Query().Get("limit"))
		assert.False(t, got.URL.Query().Has("author"))

		require.Len(t, books, 2)
		assert.Equal(t, " Dune ", books[0].Title, "titles are not normalized")
		assert.Equal(t, 1965, books[0].PublishedYear)
		assert.Equal(t, "abc", books[1].ID)
		assert.Equal(t, 1815, books[1].PublishedYear)
		assert.Equal(t, "4.5/5", books[1].FormattedRating())
	})

	t.Run("accepts legacy data envelope", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"data":[{"id":7,"title":"Old"}]}`)
		}), Options{})

		books, err := c.ListBooks(context.Background(), domain.Filter{})
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "7", books[0].ID)
	})

	t.Run("empty list", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"books":[]}`)
		}), Options{})

		books, err := c.ListBooks(context.Background(), domain.Filter{})
		require.NoError(t, err)
		assert.NotNil(t, books)
		assert.Empty(t, books)
	})

	t.Run("missing envelope is a decode error", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"items":[]}`)
		}), Options{})

		_, err := c.ListBooks(context.Background(), domain.Filter{})
		assert.Equal(t, domain.KindDecode, domain.KindOf(err))
	})

	t.Run("malformed body is a decode error", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `<html>`)
		}), Options{})

		_, err := c.ListBooks(context.Background(), domain.Filter{})
		assert.Equal(t, domain.KindDecode, domain.KindOf(err))
	})

	t.Run("server error is an http error", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}), Options{})

		_, err := c.ListBooks(context.Background(), domain.Filter{})
		require.Error(t, err)

		var derr *domain.Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, domain.KindHTTP, derr.Kind)
		assert.Equal(t, http.StatusInternalServerError, derr.Status)
	})
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		io.WriteString(w, `{"books":[]}`)
	}), Options{})

	_, err := c.ListBooks(context.Background(), domain.Filter{})
	require.NoError(t, err)

	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, userAgent, got.Get("User-Agent"))
	_, err = uuid.Parse(got.Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, Options{Timeout: time.Second}, nil)
	_, err := c.ListBooks(context.Background(), domain.Filter{})

	require.Error(t, err)
	assert.True(t, domain.IsNetwork(err))
	assert.ErrorIs(t, err, domain.ErrServiceOffline)
}

func TestClient_GetBook(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/books/42", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"42","title":"Answer"}`)
	})
	mux.HandleFunc("GET /api/v1/books/nested", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"book":{"_id":"nested","title":"Wrapped"}}`)
	})
	mux.HandleFunc("GET /api/v1/books/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	c := newTestClient(t, mux, Options{})
	ctx := context.Background()

	b, err := c.GetBook(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Answer", b.Title)

	b, err = c.GetBook(ctx, "nested")
	require.NoError(t, err)
	assert.Equal(t, "nested", b.ID)

	_, err = c.GetBook(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, domain.IsNotFound(err))
}

func TestClient_CreateBook(t *testing.T) {
	var (
		fields   map[string]string
		fileName string
		fileBody string
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/books", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		fileName, fileBody = hdr.Filename, string(data)

		writeJSON(w, http.StatusCreated, map[string]any{"book": map[string]any{
			"_id": "new-id", "title": fields["title"], "publishedYear": 1965,
		}})
	}), Options{})

	created, err := c.CreateBook(context.Background(), domain.NewBookForm{
		Title:         "Dune",
		Author:        "Frank Herbert",
		Genre:         "Sci-Fi",
		PublishedYear: 1965,
		Description:   "Spice",
		ImageName:     "dune.jpg",
		Image:         strings.NewReader("jpeg-bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, "new-id", created.ID)
	assert.Equal(t, map[string]string{
		"title":         "Dune",
		"author":        "Frank Herbert",
		"genre":         "Sci-Fi",
		"publishedYear": "1965",
		"description":   "Spice",
	}, fields)
	assert.Equal(t, "dune.jpg", fileName)
	assert.Equal(t, "jpeg-bytes", fileBody)
}

func TestClient_UpdateBook(t *testing.T) {
	title := "Renamed"

	t.Run("sends only set fields", func(t *testing.T) {
		var body map[string]any
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			io.WriteString(w, `{"id":"1","title":"Renamed"}`)
		}), Options{})

		b, err := c.UpdateBook(context.Background(), "1", domain.BookPatch{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", b.Title)
		assert.Equal(t, map[string]any{"title": "Renamed"}, body)
	})

	t.Run("no content refetches", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("PATCH /api/v1/books/1", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		mux.HandleFunc("GET /api/v1/books/1", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"id":"1","title":"Renamed"}`)
		})
		c := newTestClient(t, mux, Options{})

		b, err := c.UpdateBook(context.Background(), "1", domain.BookPatch{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", b.Title)
	})
}

func TestClient_DeleteBook(t *testing.T) {
	var (
		mu      sync.Mutex
		deleted = map[string]bool{}
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/books/")
		if deleted[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		deleted[id] = true
		w.WriteHeader(http.StatusNoContent)
	}), Options{})
	ctx := context.Background()

	require.NoError(t, c.DeleteBook(ctx, "1"))

	err := c.DeleteBook(ctx, "1")
	assert.True(t, domain.IsNotFound(err))
}

func TestClient_SaveBook(t *testing.T) {
	t.Run("posts the record as json", func(t *testing.T) {
		var (
			method, path, contentType string
			sent                      domain.Book
		)
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method, path, contentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
			json.NewDecoder(r.Body).Decode(&sent)
			writeJSON(w, http.StatusCreated, map[string]string{"message": "saved"})
		}), Options{})

		err := c.SaveBook(context.Background(), domain.Book{ID: "b1", Title: "Dune", PublishedYear: 1965})
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, method)
		assert.Equal(t, "/api/v1/books/save", path)
		assert.Equal(t, "application/json", contentType)
		assert.Equal(t, "b1", sent.ID)
		assert.Equal(t, "Dune", sent.Title)
		assert.Equal(t, 1965, sent.PublishedYear)
	})

	t.Run("server error", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}), Options{})

		err := c.SaveBook(context.Background(), domain.Book{ID: "b1"})
		require.Error(t, err)
		assert.Equal(t, domain.KindHTTP, domain.KindOf(err))
	})
}

func TestClient_Categories(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/books/categories", r.URL.Path)
		io.WriteString(w, `{"categories":[{"id":1,"name":"Design","image":"/d.jpg"}]}`)
	}), Options{})

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Category{{ID: "1", Name: "Design", Image: "/d.jpg"}}, cats)
}

func TestClient_Recommendations(t *testing.T) {
	var limit string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/books/recommendations", r.URL.Path)
		limit = r.URL.Query().Get("limit")
		io.WriteString(w, `{"books":[{"id":"1"}]}`)
	}), Options{})

	books, err := c.Recommendations(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Equal(t, "4", limit)
}

func TestClient_CircuitBreaker(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}), Options{BreakerFailures: 2, BreakerTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.ListBooks(ctx, domain.Filter{})
		assert.Equal(t, domain.KindHTTP, domain.KindOf(err))
	}

	_, err := c.ListBooks(ctx, domain.Filter{})
	require.Error(t, err)
	assert.True(t, domain.IsNetwork(err))
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)

	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), Options{BreakerFailures: 1, BreakerTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.GetBook(ctx, "gone")
		assert.True(t, domain.IsNotFound(err))
	}
}

func TestClient_CancelledRequestDoesNotTripBreaker(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		slow := calls == 1
		mu.Unlock()
		if slow {
			select {
			case <-time.After(200 * time.Millisecond):
			case <-r.Context().Done():
				return
			}
		}
		io.WriteString(w, `{"books":[]}`)
	}), Options{BreakerFailures: 1, BreakerTimeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ListBooks(ctx, domain.Filter{})
	require.Error(t, err)
	assert.True(t, domain.IsNetwork(err))
	assert.NotErrorIs(t, err, domain.ErrServiceOffline)

	_, err = c.ListBooks(context.Background(), domain.Filter{})
	require.NoError(t, err)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"books":[]}`)
	}), Options{RateLimit: 0.001, Burst: 1})

	_, err := c.ListBooks(context.Background(), domain.Filter{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ListBooks(ctx, domain.Filter{})
	assert.True(t, domain.IsNetwork(err))
}
