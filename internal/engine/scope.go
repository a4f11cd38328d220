package engine

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/kb"
)

// Resolver turns entity refs into ids. *kb.Store implements it.
type Resolver interface {
	Resolve(name string) (ir.EntityID, error)
	Exists(id ir.EntityID) bool
}

// Frame is one "current subject" binding on the scope stack.
type Frame struct {
	Entity ir.EntityID `json:"entity"`

	// Name is the ref the frame was pushed with.
	Name string `json:"name"`

	// Base templates derived names. Empty means Name.
	Base string `json:"base,omitempty"`
}

// Derive returns the derived name for page and dest under this frame:
// base?dest=<dest>&page=<page>, keys sorted, empty params omitted. With
// no params the base itself is returned.
func (f Frame) Derive(page, dest string) string {
	base := f.Base
	if base == "" {
		base = f.Name
	}
	q := url.Values{}
	if dest != "" {
		q.Set("dest", dest)
	}
	if page != "" {
		q.Set("page", page)
	}
	if len(q) == 0 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

// ParseEntityRef recognizes the "#<id>" ref form.
func ParseEntityRef(ref string) (ir.EntityID, bool) {
	if !strings.HasPrefix(ref, "#") {
		return 0, false
	}
	n, err := strconv.ParseInt(ref[1:], 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return ir.EntityID(n), true
}

// ScopeContext is the pass-local stack of current subjects.
type ScopeContext struct {
	resolver Resolver
	stack    []Frame
}

// NewScopeContext creates an empty stack resolving refs through r.
func NewScopeContext(r Resolver) *ScopeContext {
	return &ScopeContext{resolver: r}
}

// Push resolves ref (a name or "#<id>") and makes it the current subject.
func (s *ScopeContext) Push(ref, base string) error {
	id, err := s.resolve(ref)
	if err != nil {
		return err
	}
	s.stack = append(s.stack, Frame{Entity: id, Name: ref, Base: base})
	return nil
}

func (s *ScopeContext) resolve(ref string) (ir.EntityID, error) {
	if id, ok := ParseEntityRef(ref); ok {
		if !s.resolver.Exists(id) {
			return 0, &kb.NameNotFoundError{Name: ref}
		}
		return id, nil
	}
	return s.resolver.Resolve(ref)
}

// Pop removes the current subject.
func (s *ScopeContext) Pop() error {
	if len(s.stack) == 0 {
		return NewEmptyScopeError()
	}
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

// Current returns the top of the stack.
func (s *ScopeContext) Current() (Frame, error) {
	if len(s.stack) == 0 {
		return Frame{}, NewNoActiveScopeError()
	}
	return s.stack[len(s.stack)-1], nil
}

// Enter pushes ref, runs fn, and restores the stack to its previous depth
// on every exit path, panics included.
func (s *ScopeContext) Enter(ref, base string, fn func() error) error {
	depth := len(s.stack)
	if err := s.Push(ref, base); err != nil {
		return err
	}
	defer func() {
		s.stack = s.stack[:depth]
	}()
	return fn()
}

// Depth returns the number of open scopes.
func (s *ScopeContext) Depth() int {
	return len(s.stack)
}

// Frames returns a copy of the stack, outermost first.
func (s *ScopeContext) Frames() []Frame {
	return slices.Clone(s.stack)
}

// Reset drops every open scope.
func (s *ScopeContext) Reset() {
	s.stack = s.stack[:0]
}
