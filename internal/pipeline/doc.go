// Package pipeline drives derivation runs over a session. A run is an
// ordered list of labelled operations; each operation is applied to
// every recording in the session's stored order. Operations are
// memoizing through the metrics package, so re-running a pipeline over
// partially processed data only computes what is missing.
//
// Operation order is the caller's responsibility: an operation that
// consumes another's output (downsampling a metric, finding peaks on
// one) must be listed after it.
package pipeline
