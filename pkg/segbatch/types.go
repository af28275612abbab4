package segbatch

// Status defines the processing states of a scene during a batch run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// FailureReason classifies why a scene failed. Stored in TaskOutcome and the
// report's failure ledger.
type FailureReason string

const (
	ReasonMissingInput    FailureReason = "missing_input"
	ReasonInvocation      FailureReason = "invocation_failed"
	ReasonNoOutput        FailureReason = "no_output_generated"
	ReasonInvalidOutput   FailureReason = "invalid_output_format"
	ReasonUnexpectedError FailureReason = "unexpected_error"
)

// OutputFormat defines the format of the final summary report printed to
// standard output when the TUI is disabled.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// SceneTask describes one scene to process. Built once by EnumerateTasks and
// read-only afterwards.
type SceneTask struct {
	// SceneID is the scene directory name, e.g. "scene0707_00".
	SceneID string
	// SceneDir is the absolute path of the scene directory. The segmentator
	// runs with this as its working directory because it writes its output
	// beside its input.
	SceneDir string
	// PlyPath is the expected input mesh, <SceneID>_vh_clean_2.ply inside
	// SceneDir.
	PlyPath string
	// OutputPath is the canonical destination under the output directory.
	// Its filename is fixed regardless of the configured threshold.
	OutputPath string
}

// InvocationResult captures one segmentator process run. Consumed only by the
// worker that produced it.
type InvocationResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// TaskOutcome is the single observable result of one scene's pipeline.
// Exactly one exists per dispatched SceneTask, whatever happens inside the
// pipeline.
type TaskOutcome struct {
	SceneID string
	Status  Status
	Reason  FailureReason
	// Detail is a human-readable failure description (stderr excerpt, path,
	// panic value). Empty on success.
	Detail string
}
