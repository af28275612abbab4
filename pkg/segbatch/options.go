package segbatch

import "log/slog"

// Hooks defines callbacks for status updates during a batch run.
// Implementations MUST be thread-safe: OnSceneStatusUpdate is called
// concurrently from worker goroutines.
type Hooks interface {
	// OnSceneDiscovered fires once per scene the enumerator keeps.
	OnSceneDiscovered(sceneID string) error
	// OnSceneStatusUpdate fires on every state transition. completed/total
	// report batch progress and are only meaningful for terminal states.
	OnSceneStatusUpdate(sceneID string, status Status, message string, completed, total int) error
	// OnRunComplete fires once with the final report.
	OnRunComplete(report Report) error
}

// NoOpHooks is the default, do-nothing Hooks implementation.
type NoOpHooks struct{}

func (h *NoOpHooks) OnSceneDiscovered(sceneID string) error { return nil }

func (h *NoOpHooks) OnSceneStatusUpdate(sceneID string, status Status, message string, completed, total int) error {
	return nil
}

func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// Options holds all configuration for a Run.
type Options struct {
	// InputDir is the directory containing scene directories. Required,
	// resolved to an absolute path by the caller.
	InputDir string `mapstructure:"input"`
	// OutputDir receives the canonical segmentation artifacts. Required,
	// created if absent.
	OutputDir string `mapstructure:"output"`
	// BinaryPath is the segmentator executable. Defaults to a sibling of the
	// orchestrator's own executable when empty; the CLI layer resolves it.
	BinaryPath string `mapstructure:"segmentator"`

	// Threshold is the segmentation granularity parameter passed to the
	// binary (second argument, kThresh).
	Threshold float64 `mapstructure:"threshold"`
	// MinVertexCount is the minimum vertex count per segment (third
	// argument).
	MinVertexCount int `mapstructure:"min-verts"`
	// WorkerCount is the fixed degree of parallelism, >= 1.
	WorkerCount int `mapstructure:"workers"`
	// SkipExisting excludes scenes whose canonical output already exists.
	SkipExisting bool `mapstructure:"skip-existing"`

	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose"`
	// TuiEnabled hints the CLI to run the terminal UI (ignored if Verbose).
	TuiEnabled bool `mapstructure:"tui"`
	// OutputFormat selects the final report rendering ("text", "json").
	OutputFormat OutputFormat `mapstructure:"output-format"`

	// Logger is the logging backend. Required by Run.
	Logger slog.Handler `mapstructure:"-"`
	// EventHooks receives status callbacks; defaults to NoOpHooks.
	EventHooks Hooks `mapstructure:"-"`
	// Invoker runs the external binary; defaults to the os/exec
	// implementation. Replaceable for tests.
	Invoker Invoker `mapstructure:"-"`
	// ConfigFilePath records the loaded config file for reporting.
	ConfigFilePath string `mapstructure:"-"`
}
