package segbatch

// Defaults for the configuration surface. Used when setting up Viper defaults
// in the CLI configuration loading.
const (
	// DefaultThreshold is the segmentator's granularity parameter (kThresh).
	DefaultThreshold = 0.01
	// DefaultMinVertexCount is the minimum vertex count per segment.
	DefaultMinVertexCount = 20
	// DefaultWorkerCount is the number of concurrent scene workers.
	DefaultWorkerCount = 4
	// DefaultSkipExisting controls the pre-filter for scenes whose canonical
	// output already exists.
	DefaultSkipExisting = false
	// DefaultOutputFormat is the format of the final summary report.
	DefaultOutputFormat = OutputFormatText
	// DefaultVerbose is the default state for verbose logging.
	DefaultVerbose = false
	// DefaultTuiEnabled is the default state for the terminal UI.
	DefaultTuiEnabled = true
	// DefaultBinaryName is the segmentator filename looked up beside the
	// orchestrator's own executable when no path is configured.
	DefaultBinaryName = "segmentator"
)

// Filename conventions of the ScanNet scene layout and the segmentator.
const (
	// ScenePrefix identifies scene directories under the input root.
	ScenePrefix = "scene"
	// InputMeshSuffix is appended to the scene ID to form the input mesh
	// filename, e.g. scene0707_00_vh_clean_2.ply.
	InputMeshSuffix = "_vh_clean_2.ply"
	// CandidateGlobSuffix matches whatever the segmentator wrote beside the
	// mesh; the middle component embeds the threshold it was run with.
	CandidateGlobSuffix = "_vh_clean_2.*.segs.json"
	// CanonicalOutputSuffix is the fixed output filename suffix. Downstream
	// consumers (Mask3D) hard-code the 0.010000 component, so it is used for
	// every run regardless of the actual threshold.
	CanonicalOutputSuffix = "_vh_clean_2.0.010000.segs.json"
)

// ReportSchemaVersion is the version of the JSON report structure.
const ReportSchemaVersion = "1.0"
