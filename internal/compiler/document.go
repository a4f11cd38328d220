package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/akl/internal/ir"
)

// Document is a compiled op stream.
type Document struct {
	// Source is the file the document came from, if any.
	Source string `json:"source,omitempty"`

	Ops []ir.Op `json:"ops"`

	// Lines holds the source line of each op (0 when unknown). The pop
	// closing a scope block carries the block's line.
	Lines []int `json:"lines,omitempty"`
}

// Hash identifies the op stream.
func (d *Document) Hash() (string, error) {
	return ir.DocumentHash(d.Ops)
}

func (d *Document) add(op ir.Op, line int) {
	d.Ops = append(d.Ops, op)
	d.Lines = append(d.Lines, line)
}

// Line returns the source line of op i, or 0.
func (d *Document) Line(i int) int {
	if i < 0 || i >= len(d.Lines) {
		return 0
	}
	return d.Lines[i]
}

// Compile dispatches on the file extension: .cue, .yaml or .yml.
func Compile(filename string, src []byte) (*Document, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".cue":
		return CompileCUE(filename, src)
	case ".yaml", ".yml":
		return CompileYAML(filename, src)
	}
	return nil, &CompileError{
		Field:    "source",
		Message:  fmt.Sprintf("unsupported document extension %q (want .cue, .yaml or .yml)", filepath.Ext(filename)),
		Filename: filename,
	}
}

// CompileError is a document error with source position.
type CompileError struct {
	Field    string
	Message  string
	Filename string
	Line     int
	Column   int
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Filename, e.Line, e.Column,
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// scopeKind is the block form that lowers to a push/pop pair.
const scopeKind = "scope"

// shortField is the field a bare string fills for each kind.
var shortField = map[string]string{
	string(ir.OpCreate):  "name",
	string(ir.OpResolve): "name",
	string(ir.OpLabel):   "name",
	string(ir.OpRef):     "name",
	string(ir.OpRecall):  "name",
	string(ir.OpDefine):  "name",
	string(ir.OpText):    "value",
	string(ir.OpPush):    "ref",
	scopeKind:            "ref",
}

// rawOp is one document entry before lowering. Both source formats decode
// into it.
type rawOp struct {
	kind  string
	field string // document path, e.g. "document[3].body[0]"
	pos   position

	name, alias, key, value string
	ref, base, page, dest   string
	entity                  string
	aliases                 []string
	attributes              map[string]string
	body                    []rawOp
}

type position struct {
	filename     string
	line, column int
}

func (r *rawOp) errorf(format string, args ...any) *CompileError {
	return &CompileError{
		Field:    r.field,
		Message:  fmt.Sprintf(format, args...),
		Filename: r.pos.filename,
		Line:     r.pos.line,
		Column:   r.pos.column,
	}
}

// setShort applies the bare string form of an entry.
func (r *rawOp) setShort(s string) error {
	f, ok := shortField[r.kind]
	if !ok {
		return r.errorf("%s takes an object, not a string", r.kind)
	}
	return r.setString(f, s)
}

// setString applies one scalar field.
func (r *rawOp) setString(field, s string) error {
	switch field {
	case "name":
		r.name = s
	case "alias":
		r.alias = s
	case "key":
		r.key = s
	case "value":
		r.value = s
	case "ref":
		r.ref = s
	case "base":
		r.base = s
	case "page":
		r.page = s
	case "dest":
		r.dest = s
	case "entity":
		r.entity = s
	default:
		return r.errorf("unknown field %q for %s", field, r.kind)
	}
	return nil
}

func (r *rawOp) op() ir.Op {
	return ir.Op{
		Kind:       ir.OpKind(r.kind),
		Name:       r.name,
		Alias:      r.alias,
		Aliases:    r.aliases,
		Key:        r.key,
		Value:      r.value,
		Ref:        r.ref,
		Base:       r.base,
		Page:       r.page,
		Dest:       r.dest,
		Entity:     r.entity,
		Attributes: r.attributes,
	}
}

// lower flattens entries into doc. Scope blocks become push, body, pop.
func lower(raws []rawOp, doc *Document) error {
	for i := range raws {
		r := &raws[i]
		if r.kind == scopeKind {
			if r.ref == "" {
				return r.errorf("scope: ref is required")
			}
			doc.add(ir.Push(r.ref, r.base), r.pos.line)
			if err := lower(r.body, doc); err != nil {
				return err
			}
			doc.add(ir.Pop(), r.pos.line)
			continue
		}
		if len(r.body) > 0 {
			return r.errorf("body is only allowed on scope")
		}
		op := r.op()
		if err := op.Validate(); err != nil {
			return r.errorf("%s", err.Error())
		}
		doc.add(op, r.pos.line)
	}
	return nil
}
