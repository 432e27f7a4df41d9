package ir

// DependencyHash is one entry of an aggregated dependency sequence:
// the content hash of a transitively referenced callable for a specific
// usage kind, keyed by the callable's storage identity.
//
// Sequences of these are deduplicated by Identity so diamond references
// collapse to a single entry, keeping cache keys stable.
type DependencyHash struct {
	Usage    UsageKind `json:"usage"`
	Identity string    `json:"identity"`
	Hash     Hash      `json:"hash"`
}
