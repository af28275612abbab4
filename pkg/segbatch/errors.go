package segbatch

import "errors"

// Exported error variables. Callers can classify failures returned by Run or
// recorded in the report using errors.Is.
var (
	// ErrConfigValidation indicates the provided Options failed validation
	// (missing paths, bad worker count, and so on). Always fatal: returned
	// by Run before any scene is dispatched.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrNoScenes indicates the input directory contains no scene
	// directories at all. Distinct from a run where every scene was
	// filtered by skip-existing, which is a normal no-op.
	ErrNoScenes = errors.New("no scene directories found in input directory")

	// ErrBinaryNotExecutable indicates the segmentator binary could not be
	// launched. This is a misconfiguration, not a per-scene problem, so the
	// first occurrence aborts the whole batch.
	ErrBinaryNotExecutable = errors.New("segmentator binary could not be launched")

	// ErrMissingInput indicates a scene directory lacks its expected
	// *_vh_clean_2.ply input mesh. Task-scoped; the binary is never invoked
	// for such a scene.
	ErrMissingInput = errors.New("scene input mesh not found")

	// ErrInvocationFailed indicates the segmentator process exited non-zero.
	// Task-scoped. The wrapped message carries the exit code and stderr.
	ErrInvocationFailed = errors.New("segmentator exited non-zero")

	// ErrNoOutputGenerated indicates the segmentator exited zero but no
	// *.segs.json candidate appeared in the scene directory. Task-scoped.
	ErrNoOutputGenerated = errors.New("segmentator produced no segs.json output")

	// ErrInvalidOutputFormat indicates the selected candidate is not a valid
	// segmentation document (unparseable, or missing segIndices).
	// Task-scoped; nothing is written to the output directory.
	ErrInvalidOutputFormat = errors.New("invalid segs.json format")
)
