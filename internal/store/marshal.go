package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/kb"
)

// marshalOp converts an op to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so stored args hash like ir.DocumentHash.
func marshalOp(op ir.Op) (string, error) {
	data, err := ir.MarshalCanonical(op.Args())
	if err != nil {
		return "", fmt.Errorf("marshal op: %w", err)
	}
	return string(data), nil
}

// unmarshalOp parses stored op args. The keys of Op.Args match the json
// tags of ir.Op.
func unmarshalOp(data string) (ir.Op, error) {
	var op ir.Op
	if err := json.Unmarshal([]byte(data), &op); err != nil {
		return ir.Op{}, fmt.Errorf("unmarshal op: %w", err)
	}
	return op, nil
}

// marshalStrings converts a string list to canonical JSON TEXT. A nil
// list is stored as [].
func marshalStrings(ss []string) (string, error) {
	data, err := ir.MarshalCanonical(ir.Strings(ss))
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings parses a stored string list, never returning nil.
func unmarshalStrings(data string) ([]string, error) {
	ss := []string{}
	if data == "" {
		return ss, nil
	}
	if err := json.Unmarshal([]byte(data), &ss); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	if ss == nil {
		ss = []string{}
	}
	return ss, nil
}

// marshalAttributes stores attribute pairs as canonical [[key, value], ...]
// in ListAttributeKeys order.
func marshalAttributes(attrs []kb.Attribute) (string, error) {
	arr := make(ir.IRArray, len(attrs))
	for i, a := range attrs {
		arr[i] = ir.IRArray{ir.IRString(a.Key), ir.IRString(a.Value)}
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}
	return string(data), nil
}

// unmarshalAttributes parses stored attribute pairs.
func unmarshalAttributes(data string) ([]kb.Attribute, error) {
	var pairs [][2]string
	if err := json.Unmarshal([]byte(data), &pairs); err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	attrs := make([]kb.Attribute, len(pairs))
	for i, p := range pairs {
		attrs[i] = kb.Attribute{Key: p[0], Value: p[1]}
	}
	return attrs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
