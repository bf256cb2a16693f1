package book

import "time"

// Role of a collaborator.
type Role string

const (
	RoleAuthor   Role = "author"
	RoleEditor   Role = "editor"
	RoleReviewer Role = "reviewer"
)

// User is a person collaborating on the book.
type User struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Role  Role   `json:"role" validate:"oneof=author editor reviewer"`
}

// Comment is a remark on the whole book (Chapter 0) or on one chapter.
type Comment struct {
	ID        string    `json:"id" validate:"required"`
	Chapter   int       `json:"chapter" validate:"min=0"`
	Author    string    `json:"author" validate:"required"`
	Body      string    `json:"body" validate:"required,min=1,max=10000"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}
