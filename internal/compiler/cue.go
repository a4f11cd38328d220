package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/akl/internal/ir"
)

// CompileCUE compiles a CUE source holding a top-level document list.
// Uses the CUE SDK's Go API directly (not CLI subprocess).
func CompileCUE(filename string, src []byte) (*Document, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	doc, err := CompileValue(v)
	if err != nil {
		return nil, err
	}
	doc.Source = filename
	return doc, nil
}

// CompileValue compiles the "document" field of a CUE value, e.g.:
//
//	document: [
//		{create: "Thomas Colcombet"},
//		{synonym: {name: "Thomas Colcombet", alias: "Colcombet"}},
//		{scope: {ref: "Colcombet", body: [{get: {key: "salut"}}]}},
//	]
func CompileValue(v cue.Value) (*Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	docVal := v.LookupPath(cue.ParsePath("document"))
	if !docVal.Exists() {
		return nil, cueError("document", "document list is required", v.Pos())
	}

	raws, err := cueEntries(docVal, "document")
	if err != nil {
		return nil, err
	}

	doc := &Document{Ops: []ir.Op{}, Lines: []int{}}
	if err := lower(raws, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func cueEntries(list cue.Value, path string) ([]rawOp, error) {
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var raws []rawOp
	for i := 0; iter.Next(); i++ {
		raw, err := cueEntry(iter.Value(), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// cueEntry decodes {<kind>: "short"} or {<kind>: {field: ...}}.
func cueEntry(v cue.Value, path string) (rawOp, error) {
	raw := rawOp{field: path, pos: cuePosition(v.Pos())}

	fields, err := v.Fields()
	if err != nil {
		return raw, formatCUEError(err)
	}
	var body cue.Value
	n := 0
	for fields.Next() {
		raw.kind = fields.Label()
		body = fields.Value()
		n++
	}
	if n != 1 {
		return raw, raw.errorf("entry must have exactly one op key, found %d", n)
	}

	switch body.Kind() {
	case cue.StringKind:
		s, err := body.String()
		if err != nil {
			return raw, formatCUEError(err)
		}
		return raw, raw.setShort(s)
	case cue.NullKind, cue.BoolKind:
		if raw.kind == string(ir.OpPop) {
			return raw, nil
		}
	case cue.StructKind:
		return raw, cueFields(&raw, body)
	}
	return raw, raw.errorf("%s must be a string or an object", raw.kind)
}

func cueFields(raw *rawOp, v cue.Value) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		label, fv := iter.Label(), iter.Value()
		switch label {
		case "aliases":
			list, err := fv.List()
			if err != nil {
				return formatCUEError(err)
			}
			for list.Next() {
				s, err := list.Value().String()
				if err != nil {
					return formatCUEError(err)
				}
				raw.aliases = append(raw.aliases, s)
			}
		case "attributes":
			attrs, err := fv.Fields()
			if err != nil {
				return formatCUEError(err)
			}
			raw.attributes = make(map[string]string)
			for attrs.Next() {
				s, err := attrs.Value().String()
				if err != nil {
					return formatCUEError(err)
				}
				raw.attributes[attrs.Label()] = s
			}
		case "body":
			body, err := cueEntries(fv, raw.field+".body")
			if err != nil {
				return err
			}
			raw.body = body
		default:
			s, err := fv.String()
			if err != nil {
				return formatCUEError(err)
			}
			if err := raw.setString(label, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func cuePosition(p token.Pos) position {
	if !p.IsValid() {
		return position{}
	}
	return position{filename: p.Filename(), line: p.Line(), column: p.Column()}
}

func cueError(field, msg string, p token.Pos) *CompileError {
	pos := cuePosition(p)
	return &CompileError{
		Field:    field,
		Message:  msg,
		Filename: pos.filename,
		Line:     pos.line,
		Column:   pos.column,
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return cueError("cue", firstErr.Error(), positions[0])
	}

	return err
}
