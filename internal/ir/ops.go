package ir

import (
	"fmt"
	"slices"
	"strconv"
)

// EntityID is the immutable identifier of an entity.
// The first entity created in a pass gets 1.
type EntityID int64

// String renders the id the way entity refs are written in documents ("#3").
func (id EntityID) String() string {
	return "#" + strconv.FormatInt(int64(id), 10)
}

// OpKind names an operation in the document stream.
type OpKind string

const (
	OpCreate  OpKind = "create"  // CreateEntity(name)
	OpSynonym OpKind = "synonym" // CreateSynonym(name, alias)
	OpSet     OpKind = "set"     // SetAttribute(name, key, value)
	OpGet     OpKind = "get"     // GetAttribute(name, key)
	OpResolve OpKind = "resolve" // Resolve(name)
	OpPush    OpKind = "push"    // PushScope(ref[, base])
	OpPop     OpKind = "pop"     // PopScope()
	OpLabel   OpKind = "label"   // IntroduceLabel(name)
	OpRef     OpKind = "ref"     // ReferenceLabel(name)
	OpBind    OpKind = "bind"    // Bind(name, entity, key)
	OpRecall  OpKind = "recall"  // emit a bound value
	OpText    OpKind = "text"    // literal prose
	OpDefine  OpKind = "define"  // create + synonyms + attributes in one step
)

// ValidOpKinds lists every kind the engine executes.
var ValidOpKinds = []OpKind{
	OpCreate, OpSynonym, OpSet, OpGet, OpResolve, OpPush, OpPop,
	OpLabel, OpRef, OpBind, OpRecall, OpText, OpDefine,
}

// Op is one command of the document stream. Which fields are meaningful
// depends on Kind; Validate enforces the required ones.
type Op struct {
	Kind OpKind `json:"kind"`

	// Name is the entity name (create, synonym, set, get, define), the
	// label name (label, ref) or the permanent binding name (bind, recall).
	// An empty Name on set/get means the current scope entity.
	Name string `json:"name,omitempty"`

	// Alias is the new name of a synonym.
	Alias string `json:"alias,omitempty"`

	// Aliases are the extra names of a define.
	Aliases []string `json:"aliases,omitempty"`

	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`

	// Ref and Base configure a push. Ref is a name or "#<id>".
	Ref  string `json:"ref,omitempty"`
	Base string `json:"base,omitempty"`

	// Page and Dest select a derived name of the current scope base.
	Page string `json:"page,omitempty"`
	Dest string `json:"dest,omitempty"`

	// Entity is the lookup target of a bind; empty means the current scope.
	Entity string `json:"entity,omitempty"`

	// Attributes of a define, applied in sorted key order.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Create returns a create op.
func Create(name string) Op { return Op{Kind: OpCreate, Name: name} }

// Synonym returns a synonym op binding alias to the entity named name.
func Synonym(name, alias string) Op { return Op{Kind: OpSynonym, Name: name, Alias: alias} }

// Set returns a set op. An empty name targets the current scope entity.
func Set(name, key, value string) Op { return Op{Kind: OpSet, Name: name, Key: key, Value: value} }

// SetDerived returns a set op targeting the derived name of the current scope base.
func SetDerived(page, dest, key, value string) Op {
	return Op{Kind: OpSet, Page: page, Dest: dest, Key: key, Value: value}
}

// Get returns a get op. An empty name targets the current scope entity.
func Get(name, key string) Op { return Op{Kind: OpGet, Name: name, Key: key} }

// GetDerived returns a get op reading the derived name of the current scope base.
func GetDerived(page, dest, key string) Op { return Op{Kind: OpGet, Page: page, Dest: dest, Key: key} }

// Resolve returns a resolve op.
func Resolve(name string) Op { return Op{Kind: OpResolve, Name: name} }

// Push returns a push op.
func Push(ref, base string) Op { return Op{Kind: OpPush, Ref: ref, Base: base} }

// Pop returns a pop op.
func Pop() Op { return Op{Kind: OpPop} }

// Label returns a label op.
func Label(name string) Op { return Op{Kind: OpLabel, Name: name} }

// Ref returns a ref op.
func Ref(name string) Op { return Op{Kind: OpRef, Name: name} }

// Bind returns a bind op fixing entity's key under the permanent name.
func Bind(name, entity, key string) Op { return Op{Kind: OpBind, Name: name, Entity: entity, Key: key} }

// Recall returns a recall op.
func Recall(name string) Op { return Op{Kind: OpRecall, Name: name} }

// Text returns a text op.
func Text(s string) Op { return Op{Kind: OpText, Value: s} }

// Define returns a define op.
func Define(name string, aliases []string, attrs map[string]string) Op {
	return Op{Kind: OpDefine, Name: name, Aliases: aliases, Attributes: attrs}
}

// Derived reports whether a set or get op targets a derived scope name.
func (op Op) Derived() bool {
	return (op.Kind == OpSet || op.Kind == OpGet) && op.Name == "" && (op.Page != "" || op.Dest != "")
}

// SortedAttributeKeys returns the define attribute keys in application order.
func (op Op) SortedAttributeKeys() []string {
	keys := make([]string, 0, len(op.Attributes))
	for k := range op.Attributes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Validate checks that the fields required by Kind are present.
func (op Op) Validate() error {
	switch op.Kind {
	case OpCreate, OpResolve, OpLabel, OpRef, OpRecall:
		if op.Name == "" {
			return fmt.Errorf("%s: name is required", op.Kind)
		}
	case OpSynonym:
		if op.Name == "" || op.Alias == "" {
			return fmt.Errorf("synonym: name and alias are required")
		}
	case OpSet:
		if op.Key == "" {
			return fmt.Errorf("set: key is required")
		}
	case OpGet:
		if op.Key == "" {
			return fmt.Errorf("get: key is required")
		}
	case OpPush:
		if op.Ref == "" {
			return fmt.Errorf("push: ref is required")
		}
	case OpPop, OpText:
	case OpBind:
		if op.Name == "" || op.Key == "" {
			return fmt.Errorf("bind: name and key are required")
		}
	case OpDefine:
		if op.Name == "" {
			return fmt.Errorf("define: name is required")
		}
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
	return nil
}

// Args returns the op as an IRObject for canonical hashing and storage.
// Empty fields are omitted so adding a field never changes old hashes.
func (op Op) Args() IRObject {
	obj := IRObject{"kind": IRString(op.Kind)}
	put := func(k, v string) {
		if v != "" {
			obj[k] = IRString(v)
		}
	}
	put("name", op.Name)
	put("alias", op.Alias)
	put("key", op.Key)
	put("value", op.Value)
	put("ref", op.Ref)
	put("base", op.Base)
	put("page", op.Page)
	put("dest", op.Dest)
	put("entity", op.Entity)
	if len(op.Aliases) > 0 {
		obj["aliases"] = Strings(op.Aliases)
	}
	if len(op.Attributes) > 0 {
		attrs := make(IRObject, len(op.Attributes))
		for k, v := range op.Attributes {
			attrs[k] = IRString(v)
		}
		obj["attributes"] = attrs
	}
	return obj
}

// String is a short human form used in logs and traces.
func (op Op) String() string {
	switch op.Kind {
	case OpCreate, OpResolve, OpLabel, OpRef, OpRecall:
		return fmt.Sprintf("%s(%q)", op.Kind, op.Name)
	case OpSynonym:
		return fmt.Sprintf("synonym(%q, %q)", op.Name, op.Alias)
	case OpSet:
		if op.Derived() {
			return fmt.Sprintf("set(page=%q dest=%q, %q)", op.Page, op.Dest, op.Key)
		}
		return fmt.Sprintf("set(%q, %q)", op.Name, op.Key)
	case OpGet:
		if op.Derived() {
			return fmt.Sprintf("get(page=%q dest=%q, %q)", op.Page, op.Dest, op.Key)
		}
		return fmt.Sprintf("get(%q, %q)", op.Name, op.Key)
	case OpPush:
		return fmt.Sprintf("push(%q)", op.Ref)
	case OpPop:
		return "pop()"
	case OpBind:
		return fmt.Sprintf("bind(%q, %q, %q)", op.Name, op.Entity, op.Key)
	case OpText:
		return fmt.Sprintf("text(%d bytes)", len(op.Value))
	case OpDefine:
		return fmt.Sprintf("define(%q)", op.Name)
	}
	return string(op.Kind)
}
