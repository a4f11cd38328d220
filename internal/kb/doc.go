// Package kb is the in-memory knowledge base rebuilt on every pass.
//
// A Store composes three tables:
//   - Allocator: monotonically increasing entity ids, never reused
//   - NameRegistry: name -> id, many names per entity, one entity per name
//   - AttributeStore: id -> key -> value, plus a reverse index key -> ids
//
// All name-based operations resolve through the registry before touching
// attributes. Names are NFC normalized so visually identical names written
// with different code point sequences resolve to the same entity.
//
// Ordering: every list a Store returns is deterministic. Keys and reverse
// index entries are ordered by first assignment, most recent first; the
// snapshot is ordered by id.
//
// A Store is owned by a single pass and is not safe for concurrent use.
package kb
