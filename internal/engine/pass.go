package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/kb"
)

// LabelKey is the attribute IntroduceLabel reads the anchor text from.
const LabelKey = "label"

// LookupPolicy decides what a recoverable lookup miss does to a pass.
type LookupPolicy string

const (
	// LookupPlaceholder turns misses into placeholder fragments.
	LookupPlaceholder LookupPolicy = "placeholder"

	// LookupStrict aborts the pass on the first miss.
	LookupStrict LookupPolicy = "strict"
)

// ParseLookupPolicy validates a policy name. Empty means LookupPlaceholder.
func ParseLookupPolicy(s string) (LookupPolicy, bool) {
	switch LookupPolicy(s) {
	case "", LookupPlaceholder:
		return LookupPlaceholder, true
	case LookupStrict:
		return LookupStrict, true
	}
	return "", false
}

// Reference records one ReferenceLabel call and what it yielded.
type Reference struct {
	Name     string      `json:"name"`
	Target   LabelTarget `json:"target"`
	Resolved bool        `json:"resolved"`
}

// Pass is one full replay of the op stream against a fresh store.
//
// Everything a Pass owns is discarded when it ends except its label
// table, which seeds the next pass.
type Pass struct {
	number   int
	store    *kb.Store
	scope    *ScopeContext
	labels   *LabelTable
	seed     *LabelTable
	bindings *Bindings
	lookups  LookupPolicy

	fragments []Fragment
	refs      []Reference
}

// NewPass creates pass number n seeded with the previous pass's sealed
// label table (nil for the first pass).
func NewPass(n int, seed *LabelTable, rebind kb.RebindPolicy, lookups LookupPolicy) *Pass {
	store := kb.New(kb.WithRebindPolicy(rebind))
	return &Pass{
		number:    n,
		store:     store,
		scope:     NewScopeContext(store),
		labels:    NewLabelTable(),
		seed:      seed,
		bindings:  NewBindings(),
		lookups:   lookups,
		fragments: []Fragment{},
		refs:      []Reference{},
	}
}

// Execute runs ops in order. On success the label table is sealed. Any
// returned error aborted the pass; fragments emitted before it remain
// readable.
func (p *Pass) Execute(ctx context.Context, ops []ir.Op) error {
	defer p.scope.Reset()

	if _, err := p.block(ctx, ops, 0, 0); err != nil {
		return err
	}
	p.labels.Seal(p.store.Names)
	return nil
}

// block executes ops from i until the pop closing depth, or end of stream
// at depth 0. It returns the index after the last op consumed. Each push
// recurses through ScopeContext.Enter so the frame is released on every
// exit path.
func (p *Pass) block(ctx context.Context, ops []ir.Op, i, depth int) (int, error) {
	for i < len(ops) {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		op := ops[i]

		switch op.Kind {
		case ir.OpPush:
			next, entered := i, false
			err := p.scope.Enter(op.Ref, op.Base, func() error {
				entered = true
				var err error
				next, err = p.block(ctx, ops, i+1, depth+1)
				return err
			})
			if err != nil {
				if !entered {
					return i, opError(i, op, err)
				}
				return next, err
			}
			i = next

		case ir.OpPop:
			if depth == 0 {
				return i, opError(i, op, p.scope.Pop())
			}
			return i + 1, nil

		default:
			if err := p.exec(op); err != nil {
				if !p.recoverable(err) {
					return i, opError(i, op, err)
				}
				p.placeholder(err)
			}
			i++
		}
	}

	if depth > 0 {
		return i, fmt.Errorf("end of stream: %w", NewUnbalancedScopeError(depth))
	}
	return i, nil
}

func opError(i int, op ir.Op, err error) error {
	return fmt.Errorf("op %d %s: %w", i, op, err)
}

func (p *Pass) recoverable(err error) bool {
	return p.lookups == LookupPlaceholder && kb.IsRecoverable(err) && !IsStructural(err)
}

// placeholder emits the raw name behind a recoverable miss.
func (p *Pass) placeholder(err error) {
	f := Fragment{Kind: FragmentPlaceholder, Err: err}
	var ne *kb.NameNotFoundError
	var ae *kb.AttributeNotFoundError
	switch {
	case errors.As(err, &ne):
		f.Name, f.Code = ne.Name, string(ne.Code())
	case errors.As(err, &ae):
		f.Name, f.Code, f.Entity = ae.Name, string(ae.Code()), ae.Entity
	}
	f.Text = f.Name
	p.emit(f)
}

func (p *Pass) emit(f Fragment) {
	p.fragments = append(p.fragments, f)
}

func (p *Pass) exec(op ir.Op) error {
	switch op.Kind {
	case ir.OpCreate:
		_, err := p.store.CreateEntity(op.Name)
		return err

	case ir.OpSynonym:
		_, err := p.store.CreateSynonym(op.Name, op.Alias)
		return err

	case ir.OpDefine:
		return p.define(op)

	case ir.OpSet:
		id, name, err := p.target(op, true)
		if err != nil {
			return err
		}
		if id != 0 {
			p.store.SetAttributeByID(id, op.Key, op.Value)
			return nil
		}
		return p.store.SetAttribute(name, op.Key, op.Value)

	case ir.OpGet:
		id, name, err := p.target(op, false)
		if err != nil {
			return err
		}
		var v string
		if id != 0 {
			v, err = p.scopedAttribute(id, name, op.Key)
		} else {
			v, err = p.store.GetAttribute(name, op.Key)
			if err == nil {
				id, _ = p.store.Resolve(name)
			}
		}
		if err != nil {
			return err
		}
		p.emit(Fragment{Kind: FragmentValue, Text: v, Entity: id})
		return nil

	case ir.OpResolve:
		id, err := p.store.Resolve(op.Name)
		if err != nil {
			return err
		}
		p.emit(Fragment{Kind: FragmentEntity, Text: id.String(), Name: op.Name, Entity: id})
		return nil

	case ir.OpLabel:
		target, err := p.IntroduceLabel(op.Name)
		if err != nil {
			return err
		}
		p.emit(Fragment{
			Kind:   FragmentAnchor,
			Text:   target.Text,
			Name:   op.Name,
			Entity: target.Entity,
			Anchor: target.Anchor(),
		})
		return nil

	case ir.OpRef:
		target, ok := p.ReferenceLabel(op.Name)
		if !ok {
			p.emit(Fragment{Kind: FragmentReference, Text: UnresolvedText, Name: op.Name})
			return nil
		}
		p.emit(Fragment{
			Kind:   FragmentReference,
			Text:   target.Text,
			Name:   op.Name,
			Entity: target.Entity,
			Anchor: target.Anchor(),
		})
		return nil

	case ir.OpBind:
		_, err := p.Bind(op.Name, op.Entity, op.Key)
		if err != nil && p.recoverable(err) {
			// the miss is captured and reported at each recall
			return nil
		}
		return err

	case ir.OpRecall:
		b, err := p.bindings.Recall(op.Name)
		if err != nil {
			return err
		}
		if b.Err != nil {
			return b.Err
		}
		p.emit(Fragment{Kind: FragmentValue, Text: b.Value, Name: op.Name, Entity: b.Entity})
		return nil

	case ir.OpText:
		p.emit(Fragment{Kind: FragmentText, Text: op.Value})
		return nil
	}
	return fmt.Errorf("unknown op kind %q", op.Kind)
}

// target picks the entity a set or get addresses. An explicit name is
// returned as is (id 0); unqualified ops use the current frame; derived
// ops use the frame's derived name, created on first set.
func (p *Pass) target(op ir.Op, create bool) (ir.EntityID, string, error) {
	if op.Name != "" {
		return 0, op.Name, nil
	}
	frame, err := p.scope.Current()
	if err != nil {
		return 0, "", err
	}
	if !op.Derived() {
		return frame.Entity, frame.Name, nil
	}
	name := frame.Derive(op.Page, op.Dest)
	if create {
		if _, err := p.store.Resolve(name); kb.IsNameNotFound(err) {
			if _, err := p.store.CreateEntity(name); err != nil {
				return 0, "", err
			}
		}
	}
	return 0, name, nil
}

// scopedAttribute reads key from a frame entity, naming the frame in the
// error rather than the bare id.
func (p *Pass) scopedAttribute(id ir.EntityID, name, key string) (string, error) {
	v, err := p.store.GetAttributeByID(id, key)
	var ae *kb.AttributeNotFoundError
	if errors.As(err, &ae) {
		ae.Name = name
	}
	return v, err
}

// define creates op.Name, adds each alias as a synonym and applies the
// attributes in sorted key order.
func (p *Pass) define(op ir.Op) error {
	id, err := p.store.CreateEntity(op.Name)
	if err != nil {
		return err
	}
	for _, alias := range op.Aliases {
		if _, err := p.store.CreateSynonym(op.Name, alias); err != nil {
			return err
		}
	}
	for _, k := range op.SortedAttributeKeys() {
		p.store.SetAttributeByID(id, k, op.Attributes[k])
	}
	return nil
}

// IntroduceLabel establishes an anchor for name. The entity must already
// carry a "label" attribute.
func (p *Pass) IntroduceLabel(name string) (LabelTarget, error) {
	text, err := p.store.GetAttribute(name, LabelKey)
	if err != nil {
		return LabelTarget{}, err
	}
	id, err := p.store.Resolve(name)
	if err != nil {
		return LabelTarget{}, err
	}
	return p.labels.Introduce(name, id, text), nil
}

// ReferenceLabel finds the anchor for name: first among labels introduced
// earlier in this pass, then in the previous pass's table. ok is false when
// neither knows it yet. Every call is recorded for the convergence check.
func (p *Pass) ReferenceLabel(name string) (LabelTarget, bool) {
	target, ok := p.lookupLabel(name)
	p.refs = append(p.refs, Reference{Name: name, Target: target, Resolved: ok})
	return target, ok
}

func (p *Pass) lookupLabel(name string) (LabelTarget, bool) {
	if id, err := p.store.Resolve(name); err == nil {
		if target, ok := p.labels.Lookup(id); ok {
			return target, true
		}
	}
	return p.seed.LookupName(name)
}

// Bind evaluates key on entityName (or the current scope when empty) once
// and fixes the result under permanentName. A lookup miss is captured as
// well and returned.
func (p *Pass) Bind(permanentName, entityName, key string) (string, error) {
	b := Binding{Name: permanentName, Key: key}
	if entityName == "" {
		frame, err := p.scope.Current()
		if err != nil {
			return "", err
		}
		b.Entity = frame.Entity
		b.Value, b.Err = p.scopedAttribute(frame.Entity, frame.Name, key)
	} else {
		b.Value, b.Err = p.store.GetAttribute(entityName, key)
		if b.Err == nil {
			b.Entity, _ = p.store.Resolve(entityName)
		}
	}
	if err := p.bindings.Capture(b); err != nil {
		return "", err
	}
	return b.Value, b.Err
}

// Changed re-evaluates every reference of the pass against the pass's own
// sealed label table and returns the names whose target moved, sorted.
func (p *Pass) Changed() []string {
	changed := []string{}
	for _, ref := range p.refs {
		final, ok := p.labels.LookupName(ref.Name)
		if ok != ref.Resolved || final != ref.Target {
			if !slices.Contains(changed, ref.Name) {
				changed = append(changed, ref.Name)
			}
		}
	}
	slices.Sort(changed)
	return changed
}

// Unresolved returns the names of references that found no target, sorted.
func (p *Pass) Unresolved() []string {
	names := []string{}
	for _, ref := range p.refs {
		if !ref.Resolved && !slices.Contains(names, ref.Name) {
			names = append(names, ref.Name)
		}
	}
	slices.Sort(names)
	return names
}

// Number returns the 1-based pass number.
func (p *Pass) Number() int { return p.number }

// Store returns the pass's knowledge base.
func (p *Pass) Store() *kb.Store { return p.store }

// Scope returns the pass's scope stack.
func (p *Pass) Scope() *ScopeContext { return p.scope }

// Labels returns the pass's label table.
func (p *Pass) Labels() *LabelTable { return p.labels }

// Bindings returns the pass's permanent names.
func (p *Pass) Bindings() *Bindings { return p.bindings }

// Fragments returns the output emitted so far.
func (p *Pass) Fragments() []Fragment { return p.fragments }

// References returns every ReferenceLabel call in order.
func (p *Pass) References() []Reference { return p.refs }
