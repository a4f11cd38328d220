// Package engine replays akl op streams and drives multi-pass convergence.
//
// ARCHITECTURE:
//
// A Pass executes the whole op stream, in order, against a fresh kb.Store,
// a pass-local ScopeContext, LabelTable and Bindings. It emits Fragments
// that a renderer turns into text. A Coordinator runs passes until every
// label reference of a pass agrees with that pass's own final label table,
// seeding pass k+1 with pass k's labels.
//
// Single-Writer Replay:
// Everything runs on the caller's goroutine. No state survives a pass
// except the sealed LabelTable handed to the next one. This ensures:
// - Pass k+1 reassigns exactly the ids pass k did
// - The same stream always produces the same output
// - Lookup misses never leak partial state across passes
//
// CRITICAL PATTERNS:
//
// Scope balance:
// Push recurses through ScopeContext.Enter, so a frame is released on every
// exit path. A pop at depth zero is EMPTY_SCOPE; pushes left open at end of
// stream are UNBALANCED_SCOPE.
//
// Error policy:
// kb lookup misses are recoverable and become placeholder fragments under
// LookupPlaceholder. RuntimeErrors and DUPLICATE_NAME abort the pass.
//
// Determinism guard:
// Every pass's name table hash must equal pass 1's; otherwise the run
// fails with NON_DETERMINISTIC_REPLAY.
package engine
