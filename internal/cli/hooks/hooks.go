package hooks

import (
	"log/slog"
	"sync"

	"github.com/LiYuxian0306/ScanNet/pkg/segbatch"
)

// --- TUI Message Structs ---

// SceneDiscoveredMsg signals that a scene directory was found during enumeration.
type SceneDiscoveredMsg struct{ SceneID string }

// SceneStatusUpdateMsg signals a change in a scene's processing status.
type SceneStatusUpdateMsg struct {
	SceneID   string
	Status    segbatch.Status
	Message   string
	Completed int
	Total     int
}

// RunCompleteMsg signals the completion of the entire batch run.
type RunCompleteMsg struct{ Report segbatch.Report }

// --- Hook Implementation ---

// CLIHooks implements the segbatch.Hooks interface, bridging library events
// to the CLI's UI layer (TUI, Logger, Progress Bar).
type CLIHooks struct {
	logger         *slog.Logger
	tuiEnabled     bool
	verboseEnabled bool
	tuiProgram     TUIProgram
	progressBar    ProgressBar
	mu             sync.Mutex // Protects concurrent access to progressBar
	totalSet       bool
	earlyDone      int // terminal events seen before the dispatch total is known
}

// TUIProgram defines the interface needed to interact with the Bubble Tea program.
type TUIProgram interface {
	Send(msg interface{})
}

// ProgressBar defines the interface needed to interact with the progress bar.
type ProgressBar interface {
	Add(num int) error
	Describe(description string) error
	ChangeMax(max int)
	Close() error
}

// --- No-Op Implementations for Decoupling ---

// NoOpTUIProgram provides a default null implementation.
type NoOpTUIProgram struct{}

// Send implements TUIProgram.
func (n *NoOpTUIProgram) Send(msg interface{}) {}

// NoOpProgressBar provides a default null implementation.
type NoOpProgressBar struct{}

// Add implements ProgressBar.
func (n *NoOpProgressBar) Add(num int) error { return nil }

// Describe implements ProgressBar.
func (n *NoOpProgressBar) Describe(description string) error { return nil }

// ChangeMax implements ProgressBar.
func (n *NoOpProgressBar) ChangeMax(max int) {}

// Close implements ProgressBar.
func (n *NoOpProgressBar) Close() error { return nil }

// --- Constructor ---

// NewCLIHooks creates a new CLIHooks instance.
// Pass nil for tuiProgram or progressBar if not applicable; NoOp versions will be used.
func NewCLIHooks(logger *slog.Logger, tuiEnabled, verboseEnabled bool, tuiProg TUIProgram, progBar ProgressBar) segbatch.Hooks {
	if tuiProg == nil {
		tuiProg = &NoOpTUIProgram{}
	}
	if progBar == nil {
		progBar = &NoOpProgressBar{}
	}
	return &CLIHooks{
		logger:         logger,
		tuiEnabled:     tuiEnabled,
		verboseEnabled: verboseEnabled,
		tuiProgram:     tuiProg,
		progressBar:    progBar,
	}
}

// --- Interface Method Implementations ---

// OnSceneDiscovered handles the event when a scene directory is found during enumeration.
func (h *CLIHooks) OnSceneDiscovered(sceneID string) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(SceneDiscoveredMsg{SceneID: sceneID})
	} else if h.verboseEnabled {
		h.logger.Debug("Scene discovered", "scene", sceneID)
	}
	return nil // Engine ignores hook errors
}

// OnSceneStatusUpdate handles events when a scene's processing status changes.
// This method MUST be thread-safe: workers report status concurrently.
func (h *CLIHooks) OnSceneStatusUpdate(sceneID string, status segbatch.Status, message string, completed, total int) error {
	// TUI Mode: Send a message
	if h.tuiEnabled {
		h.tuiProgram.Send(SceneStatusUpdateMsg{
			SceneID:   sceneID,
			Status:    status,
			Message:   message,
			Completed: completed,
			Total:     total,
		})
		return nil
	}

	// Verbose Logging Mode
	if h.verboseEnabled {
		logLevel := slog.LevelDebug
		logMsg := "Scene status updated"
		attrs := []any{
			slog.String("scene", sceneID),
			slog.String("status", string(status)),
			slog.Int("completed", completed),
			slog.Int("total", total),
		}
		if message != "" {
			logKey := "message"
			if status == segbatch.StatusFailed {
				logKey = "error"
			}
			attrs = append(attrs, slog.String(logKey, message))
		}

		switch status {
		case segbatch.StatusSucceeded, segbatch.StatusSkipped:
			logLevel = slog.LevelInfo
		case segbatch.StatusFailed:
			logLevel = slog.LevelError
			logMsg = "Scene segmentation failed"
		}
		h.logger.Log(nil, logLevel, logMsg, attrs...)
		return nil
	}

	// Progress Bar Mode (Non-Verbose, TTY)
	h.mu.Lock()
	isFinalState := status == segbatch.StatusSucceeded ||
		status == segbatch.StatusFailed ||
		status == segbatch.StatusSkipped
	if !h.totalSet {
		if total > 0 {
			// Skip-existing events fire during enumeration with total=0,
			// before the dispatch total is known. Fold them into the max so
			// the bar's count never runs ahead of it.
			h.progressBar.ChangeMax(total + h.earlyDone)
			h.totalSet = true
		} else if isFinalState {
			h.earlyDone++
		}
	}
	if isFinalState {
		_ = h.progressBar.Describe(sceneID)
		_ = h.progressBar.Add(1)
	}
	h.mu.Unlock()

	// Failures surface even in progress bar mode
	if status == segbatch.StatusFailed {
		h.logger.Error("Scene segmentation failed", "scene", sceneID, "error", message)
	}
	return nil
}

// OnRunComplete handles the event when the entire batch finishes.
// Sends the final report to the TUI or finalizes the progress bar.
func (h *CLIHooks) OnRunComplete(report segbatch.Report) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunCompleteMsg{Report: report})
		return nil
	}
	h.mu.Lock()
	_ = h.progressBar.Close()
	h.mu.Unlock()
	return nil
}
