package engine

import (
	"github.com/roach88/akl/internal/ir"
)

// FragmentKind tells the renderer how to present a fragment.
type FragmentKind string

const (
	FragmentText        FragmentKind = "text"        // literal prose
	FragmentValue       FragmentKind = "value"       // resolved attribute or binding
	FragmentEntity      FragmentKind = "entity"      // resolved entity id
	FragmentAnchor      FragmentKind = "anchor"      // label definition site
	FragmentReference   FragmentKind = "reference"   // label use site, resolved or not
	FragmentPlaceholder FragmentKind = "placeholder" // recoverable lookup miss
)

// UnresolvedText is the text of a reference no pass has resolved yet.
const UnresolvedText = "??"

// Fragment is one piece of pass output, consumed by a renderer.
type Fragment struct {
	Kind FragmentKind `json:"kind"`
	Text string       `json:"text"`

	// Name is the raw name of a placeholder or the label name of an
	// anchor or reference.
	Name string `json:"name,omitempty"`

	Entity ir.EntityID `json:"entity,omitempty"`

	// Anchor is the link target. Empty on an unresolved reference.
	Anchor string `json:"anchor,omitempty"`

	// Code is the error code behind a placeholder.
	Code string `json:"code,omitempty"`

	Err error `json:"-"`
}

// Resolved reports whether a reference found its target.
func (f Fragment) Resolved() bool {
	return f.Kind != FragmentReference || f.Anchor != ""
}

// Args converts the fragment for canonical hashing.
func (f Fragment) Args() ir.IRObject {
	obj := ir.IRObject{
		"kind": ir.IRString(f.Kind),
		"text": ir.IRString(f.Text),
	}
	if f.Name != "" {
		obj["name"] = ir.IRString(f.Name)
	}
	if f.Entity != 0 {
		obj["entity"] = ir.IRInt(f.Entity)
	}
	if f.Anchor != "" {
		obj["anchor"] = ir.IRString(f.Anchor)
	}
	if f.Code != "" {
		obj["code"] = ir.IRString(f.Code)
	}
	return obj
}

// FragmentsArgs converts a fragment list for canonical hashing.
func FragmentsArgs(frags []Fragment) ir.IRArray {
	arr := make(ir.IRArray, len(frags))
	for i, f := range frags {
		arr[i] = f.Args()
	}
	return arr
}

// OutputFingerprint hashes a fragment list. Equal fingerprints mean equal
// rendered output under every renderer.
func OutputFingerprint(frags []Fragment) (string, error) {
	return ir.Fingerprint(ir.DomainOutput, FragmentsArgs(frags))
}
