package compiler

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/akl/internal/ir"
)

// CompileYAML compiles a YAML source holding a top-level document list:
//
//	document:
//	  - create: Thomas Colcombet
//	  - synonym: {name: Thomas Colcombet, alias: Colcombet}
//	  - scope:
//	      ref: Colcombet
//	      body:
//	        - get: {key: salut}
func CompileYAML(filename string, src []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, &CompileError{Field: "yaml", Message: err.Error(), Filename: filename}
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, &CompileError{Field: "document", Message: "document list is required", Filename: filename}
	}

	top := root.Content[0]
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value == "document" {
			doc, err := CompileYAMLNode(filename, top.Content[i+1])
			if err != nil {
				return nil, err
			}
			doc.Source = filename
			return doc, nil
		}
	}
	return nil, &CompileError{
		Field:    "document",
		Message:  "document list is required",
		Filename: filename,
		Line:     top.Line,
		Column:   top.Column,
	}
}

// CompileYAMLNode compiles an already parsed document sequence. Scenario
// files embed documents this way.
func CompileYAMLNode(filename string, seq *yaml.Node) (*Document, error) {
	raws, err := yamlEntries(filename, seq, "document")
	if err != nil {
		return nil, err
	}
	doc := &Document{Ops: []ir.Op{}, Lines: []int{}}
	if err := lower(raws, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func yamlPosition(filename string, n *yaml.Node) position {
	return position{filename: filename, line: n.Line, column: n.Column}
}

func yamlEntries(filename string, seq *yaml.Node, path string) ([]rawOp, error) {
	if seq.Kind != yaml.SequenceNode {
		return nil, &CompileError{
			Field:    path,
			Message:  "must be a list",
			Filename: filename,
			Line:     seq.Line,
			Column:   seq.Column,
		}
	}
	raws := make([]rawOp, 0, len(seq.Content))
	for i, n := range seq.Content {
		raw, err := yamlEntry(filename, n, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func yamlEntry(filename string, n *yaml.Node, path string) (rawOp, error) {
	raw := rawOp{field: path, pos: yamlPosition(filename, n)}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return raw, raw.errorf("entry must have exactly one op key")
	}
	raw.kind = n.Content[0].Value
	body := n.Content[1]

	switch body.Kind {
	case yaml.ScalarNode:
		if raw.kind == string(ir.OpPop) && (body.Tag == "!!null" || body.Tag == "!!bool") {
			return raw, nil
		}
		return raw, raw.setShort(body.Value)
	case yaml.MappingNode:
		return raw, yamlFields(filename, &raw, body)
	}
	return raw, raw.errorf("%s must be a string or an object", raw.kind)
}

func yamlFields(filename string, raw *rawOp, m *yaml.Node) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		label, fv := m.Content[i].Value, m.Content[i+1]
		switch label {
		case "aliases":
			if err := fv.Decode(&raw.aliases); err != nil {
				return raw.errorf("aliases: %v", err)
			}
		case "attributes":
			if err := fv.Decode(&raw.attributes); err != nil {
				return raw.errorf("attributes: %v", err)
			}
		case "body":
			body, err := yamlEntries(filename, fv, raw.field+".body")
			if err != nil {
				return err
			}
			raw.body = body
		default:
			if fv.Kind != yaml.ScalarNode {
				return raw.errorf("%s must be a string", label)
			}
			if err := raw.setString(label, fv.Value); err != nil {
				return err
			}
		}
	}
	return nil
}
