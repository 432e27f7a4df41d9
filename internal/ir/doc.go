// Package ir holds the shared value substrate for the graph compiler:
// typed variables, usage kinds, canonical serialization, and the
// content-hash primitives used for cache keys and staleness detection.
//
// Everything here is immutable data plus pure functions. Graph structure
// lives in internal/graph; this package must not import it.
package ir
