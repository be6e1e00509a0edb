// Package dataset defines tonguelab's core object model: sessions of
// recordings whose modalities and statistics are loaded and derived
// lazily, identified by deterministic parameter-derived names.
//
// A Session owns Recordings in order; a Recording owns Modalities
// (time-varying data) and Statistics (time-invariant aggregates) keyed
// by name. Names are pure functions of an entity's parameters, which
// makes them double as memoization keys: a derivation that already
// exists under its canonical name is never recomputed.
//
// Modalities resolve their data on first access by trying, in order,
// the recorded source file, a previously saved file, and derivation
// from the named parent modality. Assigning nil data releases memory;
// the next access resolves again. Ultrasound frame sequences run to
// gigabytes, so derivations are expected to compute their result and
// release the source frames without restructuring the object graph.
//
// Treat this package as the single source of truth for naming and
// lifecycle semantics; derivation code in internal/metrics and the
// driver in internal/pipeline build on the guarantees documented here.
package dataset
