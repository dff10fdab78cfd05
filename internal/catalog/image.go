package catalog

import (
	"net/url"
	"strings"

	"github.com/mmcdole/shelf/internal/domain"
)

// ImageResolver builds display URLs for book images on the file host
type ImageResolver struct {
	FileHost    string
	ShareToken  string
	Placeholder string
}

// URL returns <host>/<image>?shareable_link=<token>, or the placeholder
// when the book has no image.
func (r ImageResolver) URL(book domain.Book) string {
	image := strings.TrimLeft(strings.TrimSpace(book.Image), "/")
	if image == "" {
		return r.Placeholder
	}
	// Already absolute
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}

	u := strings.TrimRight(r.FileHost, "/") + "/" + image
	if r.ShareToken != "" {
		u += "?shareable_link=" + url.QueryEscape(r.ShareToken)
	}
	return u
}
