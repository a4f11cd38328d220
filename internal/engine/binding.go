package engine

import (
	"github.com/roach88/akl/internal/ir"
)

// Binding is a value fixed under a permanent name. A lookup that missed is
// remembered too, so every recall reports the same miss.
type Binding struct {
	Name   string      `json:"name"`
	Entity ir.EntityID `json:"entity,omitempty"`
	Key    string      `json:"key"`
	Value  string      `json:"value"`
	Err    error       `json:"-"`
}

// Bindings holds the permanent names of one pass.
type Bindings struct {
	byName map[string]Binding
	order  []string
}

// NewBindings creates an empty set.
func NewBindings() *Bindings {
	return &Bindings{byName: make(map[string]Binding)}
}

// Capture fixes b under b.Name. Later scope changes never affect it.
func (b *Bindings) Capture(binding Binding) error {
	if _, exists := b.byName[binding.Name]; exists {
		return NewBindingExistsError(binding.Name)
	}
	b.byName[binding.Name] = binding
	b.order = append(b.order, binding.Name)
	return nil
}

// Recall returns the binding captured under name.
func (b *Bindings) Recall(name string) (Binding, error) {
	binding, ok := b.byName[name]
	if !ok {
		return Binding{}, NewUnknownBindingError(name)
	}
	return binding, nil
}

// All returns the bindings in capture order.
func (b *Bindings) All() []Binding {
	out := make([]Binding, len(b.order))
	for i, n := range b.order {
		out[i] = b.byName[n]
	}
	return out
}
