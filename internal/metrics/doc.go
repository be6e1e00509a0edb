// Package metrics derives quantitative articulation measures from
// recorded modalities: pixel difference curves from ultrasound frame
// sequences, distance metrics from traced splines, aggregate images,
// cross-recording distance matrices, downsampled copies of any metric,
// and peak annotations on metric curves.
//
// Every Add function is memoizing: it generates the canonical names of
// everything the caller asked for, subtracts what the recording or
// session already holds, and computes only the rest. Running the same
// configuration twice does no work the second time.
package metrics
