// Package ir provides the operation stream types shared by every akl package.
//
// A document is compiled into an ordered []Op. The same slice is replayed
// once per pass; nothing in ir holds state between passes.
//
// Key design constraints:
//   - ir imports nothing internal, every other package may import ir
//   - entity ids are int64 and assigned in replay order starting at 1
//   - values are opaque strings, never typed or parsed
//   - all hashing goes through MarshalCanonical (RFC 8785, NFC strings)
package ir
