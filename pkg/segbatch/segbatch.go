// Package segbatch batch-drives the ScanNet segmentator binary across a set
// of scene directories with bounded concurrency. It tolerates per-scene
// failure without aborting the batch, normalizes the segmentator's
// non-deterministically named output into the canonical filename downstream
// consumers expect, and aggregates per-scene outcomes into a final report.
package segbatch

import "context"

// Run is the main entry point for the library: it validates opts, enumerates
// scenes, runs the full batch, and returns the final report.
//
// A completed batch with per-scene failures returns a nil error; the
// failures are in the report's ledger. A non-nil error means the run was
// aborted by a fatal configuration problem or cancellation.
func Run(ctx context.Context, opts Options) (Report, error) {
	engine, err := NewEngine(opts)
	if err != nil {
		return Report{}, err
	}
	return engine.Run(ctx)
}
