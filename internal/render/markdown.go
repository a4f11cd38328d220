package render

import (
	"html"
	"io"
	"strings"

	"github.com/roach88/akl/internal/engine"
)

// Markdown renders CommonMark. Anchors become inline HTML so references
// can link to them; placeholders are the raw name in emphasis.
type Markdown struct{}

// Name returns "markdown".
func (Markdown) Name() string { return "markdown" }

// Render implements Renderer.
func (Markdown) Render(w io.Writer, frags []engine.Fragment) error {
	return render(w, frags, markdownFragment)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
)

func markdownFragment(f engine.Fragment) string {
	switch f.Kind {
	case engine.FragmentPlaceholder:
		return "*" + markdownEscaper.Replace(f.Text) + "*"
	case engine.FragmentAnchor:
		return `<a id="` + html.EscapeString(f.Anchor) + `"></a>` + f.Text
	case engine.FragmentReference:
		if !f.Resolved() {
			return "**" + engine.UnresolvedText + "**"
		}
		return "[" + markdownEscaper.Replace(f.Text) + "](#" + f.Anchor + ")"
	}
	return f.Text
}
