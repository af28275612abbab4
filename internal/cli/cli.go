package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/LiYuxian0306/ScanNet/internal/cli/hooks"
	"github.com/LiYuxian0306/ScanNet/internal/cli/ui"
	"github.com/LiYuxian0306/ScanNet/pkg/segbatch"
)

// Run orchestrates the main application logic after configuration loading.
// It selects the UI mode (TUI, progress bar, or plain logging), wires the
// corresponding hooks into the batch engine, runs the batch, and emits the
// final report in the requested output format.
//
// A non-nil error indicates a fatal condition that aborted the batch.
// Per-scene failures are reported in the summary and do not produce an error.
func Run(ctx context.Context, opts segbatch.Options, logger *slog.Logger, version string) error {
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	useTUI := opts.TuiEnabled && !opts.Verbose && interactive && opts.OutputFormat == segbatch.OutputFormatText

	var report segbatch.Report
	var runErr error

	switch {
	case useTUI:
		report, runErr = runWithTUI(ctx, opts, logger, version)
	case !opts.Verbose && interactive && opts.OutputFormat == segbatch.OutputFormatText:
		report, runErr = runWithProgressBar(ctx, opts, logger)
	default:
		opts.EventHooks = hooks.NewCLIHooks(logger, false, opts.Verbose, nil, nil)
		report, runErr = segbatch.Run(ctx, opts)
	}

	if runErr != nil {
		logger.Error("Batch run failed", slog.Any("error", runErr))
	}

	if outputErr := emitReport(os.Stdout, report, opts.OutputFormat); outputErr != nil {
		logger.Error("Failed to emit final report", slog.Any("error", outputErr))
		if runErr == nil {
			runErr = outputErr
		}
	}

	return runErr
}

// runWithTUI runs the batch behind a Bubble Tea program. The engine runs in a
// background goroutine and streams events into the TUI via hooks; the TUI is
// shut down once the engine completes.
func runWithTUI(ctx context.Context, opts segbatch.Options, logger *slog.Logger, version string) (segbatch.Report, error) {
	model := ui.NewModel(version)
	program := tea.NewProgram(&model, tea.WithContext(ctx))

	opts.EventHooks = hooks.NewCLIHooks(logger, true, false, &teaProgramAdapter{program: program}, nil)

	var report segbatch.Report
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		report, runErr = segbatch.Run(ctx, opts)
		program.Quit()
	}()

	if _, teaErr := program.Run(); teaErr != nil {
		// A TUI failure must not lose the batch outcome. Wait for the engine
		// and report its result; the render error is secondary.
		logger.Warn("TUI terminated unexpectedly", slog.Any("error", teaErr))
	}
	<-done

	return report, runErr
}

// runWithProgressBar runs the batch with a terminal progress bar on stderr.
func runWithProgressBar(ctx context.Context, opts segbatch.Options, logger *slog.Logger) (segbatch.Report, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("segmenting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	opts.EventHooks = hooks.NewCLIHooks(logger, false, false, nil, &progressBarAdapter{bar: bar})
	return segbatch.Run(ctx, opts)
}

// teaProgramAdapter adapts *tea.Program to the hooks.TUIProgram interface.
// Program.Send takes a tea.Msg, not interface{}, so the program cannot satisfy
// the interface directly.
type teaProgramAdapter struct {
	program *tea.Program
}

func (a *teaProgramAdapter) Send(msg interface{}) { a.program.Send(msg) }

// progressBarAdapter adapts progressbar.ProgressBar to the hooks.ProgressBar
// interface used by CLIHooks.
type progressBarAdapter struct {
	bar *progressbar.ProgressBar
}

func (a *progressBarAdapter) Add(num int) error { return a.bar.Add(num) }

func (a *progressBarAdapter) Describe(description string) error {
	a.bar.Describe(description)
	return nil
}

func (a *progressBarAdapter) ChangeMax(max int) { a.bar.ChangeMax(max) }

func (a *progressBarAdapter) Close() error { return a.bar.Close() }

// emitReport writes the final run summary to w in the requested format.
func emitReport(w io.Writer, report segbatch.Report, format segbatch.OutputFormat) error {
	if format == segbatch.OutputFormatJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	fmt.Fprintf(w, "Scenes found:    %d\n", report.Summary.ScenesFound)
	fmt.Fprintf(w, "Skipped:         %d\n", report.Summary.SkippedExisting)
	fmt.Fprintf(w, "Succeeded:       %d\n", report.Summary.SuccessCount)
	fmt.Fprintf(w, "Failed:          %d\n", report.Summary.FailCount)
	fmt.Fprintf(w, "Duration:        %.2fs\n", report.Summary.DurationSeconds)
	if len(report.Failures) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, f := range report.Failures {
			if f.Detail != "" {
				fmt.Fprintf(w, "  %s: %s: %s\n", f.SceneID, f.Reason, f.Detail)
			} else {
				fmt.Fprintf(w, "  %s: %s\n", f.SceneID, f.Reason)
			}
		}
	}
	if report.Summary.FatalError != "" {
		fmt.Fprintf(w, "\nFatal error: %s\n", report.Summary.FatalError)
	}
	return nil
}
