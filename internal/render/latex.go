package render

import (
	"io"
	"strings"

	"github.com/roach88/akl/internal/engine"
)

// LaTeX renders for hyperref. Text and values are passed through: they
// are authored as LaTeX already. Names that stand in for missing values
// are escaped.
type LaTeX struct{}

// Name returns "latex".
func (LaTeX) Name() string { return "latex" }

// Render implements Renderer.
func (LaTeX) Render(w io.Writer, frags []engine.Fragment) error {
	return render(w, frags, latexFragment)
}

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`#`, `\#`,
	`$`, `\$`,
	`%`, `\%`,
	`&`, `\&`,
	`_`, `\_`,
	`^`, `\^{}`,
	`~`, `\~{}`,
)

func latexFragment(f engine.Fragment) string {
	switch f.Kind {
	case engine.FragmentPlaceholder:
		return `\emph{` + latexEscaper.Replace(f.Text) + `}`
	case engine.FragmentAnchor:
		return `\hypertarget{` + f.Anchor + `}{` + f.Text + `}`
	case engine.FragmentReference:
		if !f.Resolved() {
			return `\textbf{` + engine.UnresolvedText + `}`
		}
		return `\hyperlink{` + f.Anchor + `}{` + f.Text + `}`
	}
	return f.Text
}
