package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/internal/config"
)

var (
	// ErrNotProject is returned when a directory has no book.yaml.
	ErrNotProject = errors.New("not a bookstart project")
	// ErrNotFound is returned when a requested file does not exist.
	ErrNotFound = errors.New("not found")
)

// Folder names inside a project.
const (
	DraftsDir   = "drafts"
	OutlineDir  = "outline"
	NotesDir    = "notes"
	ResearchDir = "research"
	EditsDir    = "edits"
	ExportsDir  = "exports"
	StateDir    = ".bookstart"

	BookFile = "book.json"
)

// Layout lists the folders Init creates.
func Layout() []string {
	return []string{DraftsDir, OutlineDir, NotesDir, ResearchDir, EditsDir, ExportsDir, StateDir}
}

// Project is an opened project directory.
type Project struct {
	root     string
	settings config.Config

	// serializes read-modify-write cycles of book.json
	bookMu sync.Mutex
}

// Init creates the project layout under dir. It can be run again on an
// existing project: missing folders are created and an existing book.yaml is
// left alone.
func Init(dir string, settings config.Config) (*Project, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for _, sub := range Layout() {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	cfgPath := filepath.Join(root, config.FileName)
	if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
		if err := settings.Validate(); err != nil {
			return nil, err
		}
		data, err := settings.Marshal()
		if err != nil {
			return nil, err
		}
		if err := writeFileAtomic(cfgPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", config.FileName, err)
		}
	} else if err != nil {
		return nil, err
	}
	return Open(root)
}

// Open loads the settings of the project in dir, environment overrides
// included.
func Open(dir string) (*Project, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	cfgPath := filepath.Join(root, config.FileName)
	if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s has no %s", ErrNotProject, root, config.FileName)
	}
	settings, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return &Project{root: root, settings: settings}, nil
}

// Root is the absolute project directory.
func (p *Project) Root() string { return p.root }

// Settings are the loaded book.yaml settings.
func (p *Project) Settings() config.Config { return p.settings }

// Path joins elem onto the project root.
func (p *Project) Path(elem ...string) string {
	return filepath.Join(append([]string{p.root}, elem...)...)
}

// HasBook reports whether book.json exists.
func (p *Project) HasBook() bool {
	_, err := os.Stat(p.Path(BookFile))
	return err == nil
}

// SaveBook validates and writes book.json.
func (p *Project) SaveBook(b *book.Book) error {
	if err := b.Validate(); err != nil {
		return err
	}
	p.bookMu.Lock()
	defer p.bookMu.Unlock()
	return writeJSON(p.Path(BookFile), b)
}

// LoadBook reads book.json.
func (p *Project) LoadBook() (*book.Book, error) {
	p.bookMu.Lock()
	defer p.bookMu.Unlock()
	return p.loadBook()
}

func (p *Project) loadBook() (*book.Book, error) {
	var b book.Book
	if err := readJSON(p.Path(BookFile), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBook loads book.json, applies fn and writes the result back while
// holding the book lock. Nothing is written when fn fails.
func (p *Project) UpdateBook(fn func(*book.Book) error) (*book.Book, error) {
	p.bookMu.Lock()
	defer p.bookMu.Unlock()

	b, err := p.loadBook()
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := writeJSON(p.Path(BookFile), b); err != nil {
		return nil, err
	}
	return b, nil
}

// Export writes data to exports/name and returns the full path.
func (p *Project) Export(name string, data []byte) (string, error) {
	path := p.Path(ExportsDir, filepath.Base(name))
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
