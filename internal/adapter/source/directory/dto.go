package directory

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
)

// booksEnvelope is the list response. Older deployments used "data"
// instead of "books"; both are accepted, "books" wins.
type booksEnvelope struct {
	Books *[]bookDTO `json:"books"`
	Data  *[]bookDTO `json:"data"`
}

// categoriesEnvelope is the /books/categories response
type categoriesEnvelope struct {
	Categories *[]categoryDTO `json:"categories"`
	Data       *[]categoryDTO `json:"data"`
}

// bookEnvelope wraps single-record responses from deployments that nest them
type bookEnvelope struct {
	Book *bookDTO `json:"book"`
	Data *bookDTO `json:"data"`
}

// bookDTO is a book as it appears on the wire
type bookDTO struct {
	ID            flexString `json:"id"`
	MongoID       flexString `json:"_id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Genre         string     `json:"genre"`
	PublishedYear flexInt    `json:"publishedYear"`
	Description   string     `json:"description"`
	Image         string     `json:"image"`
	Rating        *float64   `json:"rating,omitempty"`
}

// categoryDTO is a category as it appears on the wire
type categoryDTO struct {
	ID    flexString `json:"id"`
	Name  string     `json:"name"`
	Image string     `json:"image"`
}

// flexInt accepts 1999 as well as "1999"
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexString accepts "abc" as well as numeric ids like 12
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
