package tui

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// The style follows the terminal background.
func NewRenderer(width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}

// PlainRenderer returns markdown untouched. Used for headless output.
func PlainRenderer() func(string) (string, error) {
	return func(markdown string) (string, error) {
		return markdown + "\n", nil
	}
}
