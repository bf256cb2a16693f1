// Package collab manages the people working on a book and their comments.
package collab

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/pkg/uuidx"
	"github.com/casualjim/bookstart/project"
)

var (
	ErrDuplicateUser  = errors.New("user already exists")
	ErrUnknownUser    = errors.New("unknown user")
	ErrUnknownComment = errors.New("unknown comment")
	ErrUnknownChapter = errors.New("chapter is not in the outline")
)

// Manager reads and writes the collaboration files of a project.
type Manager struct {
	project *project.Project
	now     func() time.Time
	mu      sync.Mutex
}

func New(p *project.Project) *Manager {
	return &Manager{project: p, now: time.Now}
}

// AddUser registers a collaborator. Names are unique, case insensitive.
func (m *Manager) AddUser(u book.User) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if u.Role == "" {
		u.Role = book.RoleAuthor
	}
	if err := book.Validate(&u); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	users, err := m.project.LoadUsers()
	if err != nil {
		return err
	}
	if slices.ContainsFunc(users, func(other book.User) bool { return strings.EqualFold(other.Name, u.Name) }) {
		return fmt.Errorf("%w: %s", ErrDuplicateUser, u.Name)
	}
	return m.project.SaveUsers(append(users, u))
}

// Users lists the collaborators in the order they were added.
func (m *Manager) Users() ([]book.User, error) {
	return m.project.LoadUsers()
}

// AddComment stores a comment on the book (chapter 0) or one chapter. The
// author must be a known user and, once an outline exists, the chapter must
// be part of it.
func (m *Manager) AddComment(author string, chapter int, body string) (book.Comment, error) {
	c := book.Comment{
		ID:        uuidx.Short(),
		Chapter:   chapter,
		Author:    strings.TrimSpace(author),
		Body:      strings.TrimSpace(body),
		CreatedAt: m.now().UTC(),
	}
	if err := book.Validate(&c); err != nil {
		return book.Comment{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	users, err := m.project.LoadUsers()
	if err != nil {
		return book.Comment{}, err
	}
	if !slices.ContainsFunc(users, func(u book.User) bool { return strings.EqualFold(u.Name, c.Author) }) {
		return book.Comment{}, fmt.Errorf("%w: %s", ErrUnknownUser, c.Author)
	}
	if chapter > 0 {
		outline, err := m.project.LoadOutline()
		switch {
		case err == nil:
			if _, err := outline.Entry(chapter); err != nil {
				return book.Comment{}, fmt.Errorf("%w: %d", ErrUnknownChapter, chapter)
			}
		case !errors.Is(err, project.ErrNotFound):
			return book.Comment{}, err
		}
	}

	comments, err := m.project.LoadComments()
	if err != nil {
		return book.Comment{}, err
	}
	if err := m.project.SaveComments(append(comments, c)); err != nil {
		return book.Comment{}, err
	}
	return c, nil
}

// Comments returns the comments for a chapter, or every comment when chapter
// is negative. Unresolved comments are listed first.
func (m *Manager) Comments(chapter int) ([]book.Comment, error) {
	all, err := m.project.LoadComments()
	if err != nil {
		return nil, err
	}
	out := make([]book.Comment, 0, len(all))
	for _, c := range all {
		if chapter < 0 || c.Chapter == chapter {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b book.Comment) int {
		switch {
		case a.Resolved == b.Resolved:
			return 0
		case !a.Resolved:
			return -1
		default:
			return 1
		}
	})
	return out, nil
}

// Resolve marks a comment as resolved.
func (m *Manager) Resolve(id string) (book.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	comments, err := m.project.LoadComments()
	if err != nil {
		return book.Comment{}, err
	}
	idx := slices.IndexFunc(comments, func(c book.Comment) bool { return c.ID == id })
	if idx < 0 {
		return book.Comment{}, fmt.Errorf("%w: %s", ErrUnknownComment, id)
	}
	comments[idx].Resolved = true
	if err := m.project.SaveComments(comments); err != nil {
		return book.Comment{}, err
	}
	return comments[idx], nil
}
