package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/mmcdole/shelf/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if name := fld.Tag.Get("form"); name != "" {
				return name
			}
			return fld.Name
		})
	})
	return validate
}

// FieldError is a single rejected field of a form
type FieldError struct {
	Field   string
	Message string
}

// FormError lists every rejected field
type FormError struct {
	Fields []FieldError
}

func (e *FormError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field was rejected
func (e *FormError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// NormalizeForm trims the text fields of a form
func NormalizeForm(form domain.NewBookForm) domain.NewBookForm {
	form.Title = strings.TrimSpace(form.Title)
	form.Author = strings.TrimSpace(form.Author)
	form.Genre = strings.TrimSpace(form.Genre)
	form.Description = strings.TrimSpace(form.Description)
	form.ImageName = strings.TrimSpace(form.ImageName)
	return form
}

// ValidateForm checks a new book form. It returns a *FormError or nil.
func ValidateForm(form domain.NewBookForm) error {
	fe := &FormError{}

	if err := getValidator().Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, v := range verrs {
			fe.Fields = append(fe.Fields, FieldError{
				Field:   v.Field(),
				Message: fieldMessage(v),
			})
		}
	}

	// The file body has no tag of its own; a name without content is rejected too
	if form.Image == nil && !fe.Has("image") {
		fe.Fields = append(fe.Fields, FieldError{Field: "image", Message: "image is required"})
	}

	if len(fe.Fields) == 0 {
		return nil
	}
	return fe
}

func fieldMessage(v validator.FieldError) string {
	switch v.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", v.Field())
	case "min", "max":
		return fmt.Sprintf("%s must be between 1900 and 2099", v.Field())
	default:
		return fmt.Sprintf("%s is invalid (%s)", v.Field(), v.Tag())
	}
}

// ValidatePatch checks the fields a patch sets. It returns a *FormError or nil.
func ValidatePatch(patch domain.BookPatch) error {
	fe := &FormError{}
	v := getValidator()

	required := []struct {
		name  string
		value *string
	}{
		{"title", patch.Title},
		{"author", patch.Author},
		{"genre", patch.Genre},
	}
	for _, f := range required {
		if f.value != nil && v.Var(strings.TrimSpace(*f.value), "required") != nil {
			fe.Fields = append(fe.Fields, FieldError{Field: f.name, Message: f.name + " cannot be empty"})
		}
	}
	if patch.PublishedYear != nil && v.Var(*patch.PublishedYear, "min=1900,max=2099") != nil {
		fe.Fields = append(fe.Fields, FieldError{Field: "publishedYear", Message: "publishedYear must be between 1900 and 2099"})
	}
	if patch.Rating != nil && v.Var(*patch.Rating, "min=0,max=5") != nil {
		fe.Fields = append(fe.Fields, FieldError{Field: "rating", Message: "rating must be between 0 and 5"})
	}

	if len(fe.Fields) == 0 {
		return nil
	}
	return fe
}
