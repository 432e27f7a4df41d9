// Package compiler resolves and compiles call sites: the per-input
// binding decision procedure, auto-binding against contextual symbols,
// static-switch constant resolution, and the orchestration that
// sequences a Translator to emit target code.
//
// The compiler never emits code itself. It decides, for every declared
// input of the callee, whether to use an explicit link, an inline
// literal, an automatically discovered contextual symbol, or the
// callee's own default, and drives the Translator accordingly.
//
// Compilation of a single call graph is single-threaded and
// synchronous. Binding errors accumulate per call site and never abort
// sibling-input resolution, so one compile reports every unbound input
// at once.
package compiler
