// Package graph models node graphs for the scripting language: an
// arena-indexed node store, pins and links, callable definitions
// (graph-defined subroutines and built-in signatures), and call-site
// nodes that invoke them.
//
// Nodes are addressed by NodeID and pins by PinRef; nothing in this
// package holds an owning back-pointer, so reachability questions
// (link tracing, referenced-graph closure, cycle rejection) are pure
// index walks.
//
// Thread-safety model: a Graph is single-writer. Callers must serialize
// structural edits and compiles on the same graph; concurrent reads are
// safe only while no edit is in flight.
package graph
