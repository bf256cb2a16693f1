package book

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-openapi/swag"
	"github.com/go-playground/validator/v10"
)

// Status is the production state of a book.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusOutlined Status = "outlined"
	StatusWriting  Status = "writing"
	StatusEditing  Status = "editing"
	StatusComplete Status = "complete"
)

// ErrInvalid wraps every validation failure returned by this package.
var ErrInvalid = errors.New("invalid")

// Book is the top level description of the manuscript to produce.
type Book struct {
	ID              string    `json:"id" validate:"required"`
	Title           string    `json:"title" validate:"required,min=1,max=200"`
	Theme           string    `json:"theme" validate:"required,min=3,max=4000"`
	Genre           string    `json:"genre,omitempty" validate:"max=100"`
	Audience        string    `json:"audience,omitempty" validate:"max=200"`
	Style           string    `json:"style,omitempty" validate:"max=500"`
	Language        string    `json:"language" validate:"required,max=50"`
	ChapterCount    int       `json:"chapter_count" validate:"min=1,max=100"`
	WordsPerChapter int       `json:"words_per_chapter" validate:"min=100,max=20000"`
	Status          Status    `json:"status" validate:"oneof=draft outlined writing editing complete"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Slug is a file system friendly version of the title.
func (b *Book) Slug() string {
	return Slugify(b.Title)
}

// TargetWords is the requested length of the whole manuscript.
func (b *Book) TargetWords() int {
	return b.ChapterCount * b.WordsPerChapter
}

// Validate checks the book against its field rules.
func (b *Book) Validate() error {
	return validateStruct(b)
}

// Touch sets UpdatedAt (and CreatedAt when unset) to now.
func (b *Book) Touch(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

var validate = validator.New()

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// Validate validates any struct from this package, or any struct carrying
// validator tags.
func Validate(v any) error {
	return validateStruct(v)
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := swag.ToFileName(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// Slugify turns a title into a lower case, dash separated name that is safe to
// use as a file name. Letters and digits of any script are kept; the result
// holds at most 60 bytes and never splits a rune.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			if b.Len()+utf8.RuneLen(r) > maxSlug {
				return finishSlug(b.String())
			}
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return finishSlug(b.String())
}

const maxSlug = 60

func finishSlug(s string) string {
	s = strings.TrimRight(s, "-")
	if s == "" {
		return "untitled"
	}
	return s
}
