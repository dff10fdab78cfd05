package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/mmcdole/shelf/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Shelf/1.0"
)

// Options tunes the transport. The zero value means no rate limit, no
// circuit breaker and the default timeout.
type Options struct {
	Timeout         time.Duration
	RateLimit       float64 // Requests per second, 0 = unlimited
	Burst           int
	BreakerFailures uint32 // 0 = no circuit breaker
	BreakerTimeout  time.Duration
	HTTPClient      *http.Client // Overrides Timeout when set
}

// Client implements domain.DirectoryRepository over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*response]
	logger     *slog.Logger
}

var _ domain.DirectoryRepository = (*Client)(nil)

// NewClient creates a new Book Directory Service client
func NewClient(baseURL string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
		breaker:    newBreaker(opts.BreakerFailures, opts.BreakerTimeout, logger),
		logger:     logger,
	}
}

// doRequest performs one request and returns the fully read response.
// Only failures where the service gave no response come back as errors.
func (c *Client) doRequest(ctx context.Context, op, method, path string, query url.Values, body []byte, contentType string) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, domain.NetworkError(op, err)
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL = reqURL + "?" + query.Encode()
	}

	requestID := uuid.NewString()
	c.logger.Debug("directory request", "op", op, "method", method, "url", reqURL, "request_id", requestID)

	send := func() (*response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("X-Request-ID", requestID)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errCallerGone, ctx.Err())
			}
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errCallerGone, ctx.Err())
			}
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		r := &response{status: resp.StatusCode, body: data}
		if resp.StatusCode >= 500 {
			return r, errServerStatus
		}
		return r, nil
	}

	var (
		resp *response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(send)
	} else {
		resp, err = send()
	}

	switch {
	case err == nil, errors.Is(err, errServerStatus):
		if resp.status >= 400 {
			c.logger.Error("directory request error", "op", op, "status", resp.status, "request_id", requestID, "body", truncate(resp.body, 512))
		}
		return resp, nil
	case errors.Is(err, errCallerGone):
		c.logger.Debug("directory request abandoned", "op", op, "request_id", requestID, "error", err)
		return nil, domain.NetworkError(op, err)
	case isBreakerRejection(err):
		c.logger.Warn("directory request rejected by circuit breaker", "op", op, "request_id", requestID)
		return nil, domain.NetworkError(op, fmt.Errorf("%w: %w", domain.ErrCircuitOpen, err))
	default:
		c.logger.Error("directory request failed", "op", op, "request_id", requestID, "error", err)
		return nil, domain.NetworkError(op, fmt.Errorf("%w: %w", domain.ErrServiceOffline, err))
	}
}

// statusError classifies a non-success status. A 404 on an id-addressed
// resource is a not-found; everything else is an HTTP error.
func statusError(op, id string, status int) error {
	if status == http.StatusNotFound && id != "" {
		return domain.NotFoundError(op, id)
	}
	return domain.HTTPError(op, status)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// decodeBooks parses a books envelope
func decodeBooks(op string, body []byte) ([]domain.Book, error) {
	var env booksEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.DecodeError(op, err)
	}
	switch {
	case env.Books != nil:
		return MapBooks(*env.Books), nil
	case env.Data != nil:
		return MapBooks(*env.Data), nil
	default:
		return nil, domain.DecodeError(op, errors.New(`response has no "books" field`))
	}
}

// decodeBook parses a single book, bare or nested under "book"/"data"
func decodeBook(op string, body []byte) (domain.Book, error) {
	var env bookEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Book != nil {
			return MapBook(*env.Book), nil
		}
		if env.Data != nil {
			return MapBook(*env.Data), nil
		}
	}

	var dto bookDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return domain.Book{}, domain.DecodeError(op, err)
	}
	book := MapBook(dto)
	if book.ID == "" {
		return domain.Book{}, domain.DecodeError(op, errors.New("book has no id"))
	}
	return book, nil
}

// ListBooks returns books matching the filter
func (c *Client) ListBooks(ctx context.Context, filter domain.Filter) ([]domain.Book, error) {
	const op = "list books"

	query := url.Values{}
	if filter.Title != "" {
		query.Set("title", filter.Title)
	}
	if filter.Author != "" {
		query.Set("author", filter.Author)
	}
	if filter.Genre != "" {
		query.Set("category", filter.Genre)
	}
	if filter.ID != "" {
		query.Set("id", filter.ID)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/books", query, nil, "")
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.status) {
		return nil, statusError(op, "", resp.status)
	}

	books, err := decodeBooks(op, resp.body)
	if err != nil {
		c.logger.Error("failed to parse books", "error", err, "bodyLen", len(resp.body))
		return nil, err
	}
	return books, nil
}

// Recommendations returns the service's recommended books
func (c *Client) Recommendations(ctx context.Context, limit int) ([]domain.Book, error) {
	const op = "recommendations"

	if limit <= 0 {
		limit = domain.DefaultRecommendationLimit
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/books/recommendations", query, nil, "")
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.status) {
		return nil, statusError(op, "", resp.status)
	}
	return decodeBooks(op, resp.body)
}

// Categories returns the browsable categories
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	const op = "categories"

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/books/categories", nil, nil, "")
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.status) {
		return nil, statusError(op, "", resp.status)
	}

	var env categoriesEnvelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return nil, domain.DecodeError(op, err)
	}
	switch {
	case env.Categories != nil:
		return MapCategories(*env.Categories), nil
	case env.Data != nil:
		return MapCategories(*env.Data), nil
	default:
		return nil, domain.DecodeError(op, errors.New(`response has no "categories" field`))
	}
}

// GetBook returns a single book by id
func (c *Client) GetBook(ctx context.Context, id string) (domain.Book, error) {
	const op = "get book"

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/books/"+url.PathEscape(id), nil, nil, "")
	if err != nil {
		return domain.Book{}, err
	}
	if !isSuccess(resp.status) {
		return domain.Book{}, statusError(op, id, resp.status)
	}
	return decodeBook(op, resp.body)
}

// CreateBook submits a new book as multipart form data
func (c *Client) CreateBook(ctx context.Context, form domain.NewBookForm) (domain.Book, error) {
	const op = "create book"

	body, contentType, err := encodeNewBook(form)
	if err != nil {
		return domain.Book{}, domain.ValidationError(op, err)
	}

	resp, err := c.doRequest(ctx, op, http.MethodPost, "/books", nil, body, contentType)
	if err != nil {
		return domain.Book{}, err
	}
	if !isSuccess(resp.status) {
		return domain.Book{}, statusError(op, "", resp.status)
	}

	book, err := decodeBook(op, resp.body)
	if err != nil {
		return domain.Book{}, err
	}
	c.logger.Info("created book", "id", book.ID, "title", book.Title)
	return book, nil
}

// encodeNewBook builds the multipart payload for a new book
func encodeNewBook(form domain.NewBookForm) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"title", form.Title},
		{"author", form.Author},
		{"genre", form.Genre},
		{"publishedYear", strconv.Itoa(form.PublishedYear)},
		{"description", form.Description},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if form.Image == nil {
		return nil, "", errors.New("image is required")
	}
	part, err := w.CreateFormFile("image", form.ImageName)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, form.Image); err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// UpdateBook applies a partial update
func (c *Client) UpdateBook(ctx context.Context, id string, patch domain.BookPatch) (domain.Book, error) {
	const op = "update book"

	body, err := json.Marshal(patch)
	if err != nil {
		return domain.Book{}, domain.ValidationError(op, err)
	}

	resp, err := c.doRequest(ctx, op, http.MethodPatch, "/books/"+url.PathEscape(id), nil, body, "application/json")
	if err != nil {
		return domain.Book{}, err
	}
	if !isSuccess(resp.status) {
		return domain.Book{}, statusError(op, id, resp.status)
	}

	// Some deployments answer 204 without a body
	if resp.status == http.StatusNoContent || len(bytes.TrimSpace(resp.body)) == 0 {
		return c.GetBook(ctx, id)
	}
	return decodeBook(op, resp.body)
}

// DeleteBook removes a book
func (c *Client) DeleteBook(ctx context.Context, id string) error {
	const op = "delete book"

	resp, err := c.doRequest(ctx, op, http.MethodDelete, "/books/"+url.PathEscape(id), nil, nil, "")
	if err != nil {
		return err
	}
	if !isSuccess(resp.status) {
		return statusError(op, id, resp.status)
	}
	c.logger.Info("deleted book", "id", id)
	return nil
}

// SaveBook posts the book as JSON to /books/save
func (c *Client) SaveBook(ctx context.Context, book domain.Book) error {
	const op = "save book"

	body, err := json.Marshal(book)
	if err != nil {
		return domain.ValidationError(op, err)
	}

	resp, err := c.doRequest(ctx, op, http.MethodPost, "/books/save", nil, body, "application/json")
	if err != nil {
		return err
	}
	if !isSuccess(resp.status) {
		return statusError(op, "", resp.status)
	}
	c.logger.Info("saved book", "id", book.ID)
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
