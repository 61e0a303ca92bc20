// Package matching holds the pure heuristics of track resolution: normalization and signatures,
// the junk filter, the intent-tagged query planner, and the candidate scorer and selector.
//
// Nothing in this package performs I/O.
package matching
