// Package render turns engine fragments into document text.
//
// Renderers never look anything up: every decision the knowledge base
// made (resolved value, placeholder, unresolved reference) is already in
// the fragment.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/akl/internal/engine"
)

// Renderer writes fragments in one output style.
type Renderer interface {
	// Name is the style name used in configuration ("markdown", "latex").
	Name() string

	// Render writes frags to w in order.
	Render(w io.Writer, frags []engine.Fragment) error
}

// Styles lists the supported style names.
var Styles = []string{"markdown", "latex"}

// ForStyle returns the renderer for a style name. Empty means markdown.
func ForStyle(style string) (Renderer, error) {
	switch style {
	case "", "markdown":
		return Markdown{}, nil
	case "latex":
		return LaTeX{}, nil
	}
	return nil, fmt.Errorf("unknown render style %q (want one of %s)", style, strings.Join(Styles, ", "))
}

// String renders frags into a string.
func String(r Renderer, frags []engine.Fragment) (string, error) {
	var b strings.Builder
	if err := r.Render(&b, frags); err != nil {
		return "", err
	}
	return b.String(), nil
}

// fragmentWriter is the per-style part of a renderer.
type fragmentWriter func(f engine.Fragment) string

func render(w io.Writer, frags []engine.Fragment, write fragmentWriter) error {
	for i, f := range frags {
		if _, err := io.WriteString(w, write(f)); err != nil {
			return fmt.Errorf("render fragment %d: %w", i, err)
		}
	}
	return nil
}
