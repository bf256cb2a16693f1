package manuscript

import (
	"github.com/charmbracelet/glamour"
)

// Render formats markdown for a terminal of the given width. A width of zero
// keeps glamour's default.
func Render(markdown string, width int) (string, error) {
	options := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		options = append(options, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return "", err
	}
	return r.Render(markdown)
}
