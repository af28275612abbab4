package segbatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Engine orchestrates one batch run: enumerate scenes, drive the worker
// pool, aggregate outcomes, and build the final report.
type Engine struct {
	opts       *Options
	logger     *slog.Logger
	invoker    Invoker
	aggregator *batchAccumulator
}

// NewEngine validates opts and builds an Engine. Validation failures are
// wrapped with ErrConfigValidation.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}
	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))

	if opts.InputDir == "" {
		return nil, fmt.Errorf("%w: input directory is required", ErrConfigValidation)
	}
	info, err := os.Stat(opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot access input directory %q: %v", ErrConfigValidation, opts.InputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: input path %q is not a directory", ErrConfigValidation, opts.InputDir)
	}
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("%w: output directory is required", ErrConfigValidation)
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create or access output directory %q: %v", ErrConfigValidation, opts.OutputDir, err)
	}
	if opts.WorkerCount < 1 {
		return nil, fmt.Errorf("%w: worker count must be >= 1, got %d", ErrConfigValidation, opts.WorkerCount)
	}

	invoker := opts.Invoker
	if invoker == nil {
		if opts.BinaryPath == "" {
			return nil, fmt.Errorf("%w: segmentator binary path is required", ErrConfigValidation)
		}
		invoker = NewExecInvoker(opts.BinaryPath, opts.Threshold, opts.MinVertexCount, opts.Logger)
		logger.Debug("Invoker not provided, using exec invoker", slog.String("binary", opts.BinaryPath))
	}

	return &Engine{
		opts:       &opts,
		logger:     logger,
		invoker:    invoker,
		aggregator: newBatchAccumulator(),
	}, nil
}

// Run executes the batch. Per-scene failures are recorded in the report and
// do not produce a non-nil error; only fatal configuration problems (no
// scenes discovered, unlaunchable binary) and cancellation do.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	startTime := time.Now()

	tasks, skippedExisting, err := EnumerateTasks(e.opts, e.logger)
	if err != nil {
		return e.buildReport(startTime, 0, 0, 0, err), err
	}
	scenesFound := len(tasks) + skippedExisting

	e.logger.Info("Starting segmentation batch",
		slog.Int("scenes", len(tasks)),
		slog.Int("skippedExisting", skippedExisting),
		slog.Int("workers", e.opts.WorkerCount),
		slog.Float64("threshold", e.opts.Threshold),
		slog.Int("minVertexCount", e.opts.MinVertexCount),
		slog.String("binary", e.opts.BinaryPath),
		slog.String("outputDir", e.opts.OutputDir),
	)

	if len(tasks) == 0 {
		e.logger.Info("Nothing to do, all scenes already have output")
		report := e.buildReport(startTime, scenesFound, skippedExisting, 0, nil)
		e.fireRunComplete(report)
		return report, nil
	}

	outcomeChan := make(chan TaskOutcome, e.opts.WorkerCount)
	aggregatorDone := make(chan struct{})
	go e.aggregateOutcomes(outcomeChan, len(tasks), aggregatorDone)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.WorkerCount)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			outcome, fatalErr := e.runTask(gctx, task)
			outcomeChan <- outcome
			return fatalErr
		})
	}
	fatalErr := g.Wait()
	close(outcomeChan)
	<-aggregatorDone

	if fatalErr == nil && ctx.Err() != nil {
		fatalErr = ctx.Err()
		e.logger.Info("Batch cancelled", slog.String("reason", ctx.Err().Error()))
	}

	report := e.buildReport(startTime, scenesFound, skippedExisting, len(tasks), fatalErr)
	e.logger.Info("Segmentation batch finished",
		slog.Int("succeeded", report.Summary.SuccessCount),
		slog.Int("failed", report.Summary.FailCount),
		slog.Duration("duration", time.Since(startTime)),
		slog.Bool("fatal", fatalErr != nil),
	)
	e.fireRunComplete(report)
	return report, fatalErr
}

// runTask executes one scene's full pipeline and always produces exactly one
// outcome. All task-scoped errors, panics included, are converted into the
// outcome here and never cross into the pool's control logic. The second
// return value is non-nil only for fatal configuration errors, which abort
// the batch.
func (e *Engine) runTask(ctx context.Context, task SceneTask) (outcome TaskOutcome, fatalErr error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic recovered in scene pipeline", slog.String("scene", task.SceneID), slog.Any("panicValue", r))
			outcome = TaskOutcome{
				SceneID: task.SceneID,
				Status:  StatusFailed,
				Reason:  ReasonUnexpectedError,
				Detail:  fmt.Sprintf("panic: %v", r),
			}
			fatalErr = nil
		}
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return TaskOutcome{
			SceneID: task.SceneID,
			Status:  StatusFailed,
			Reason:  ReasonUnexpectedError,
			Detail:  fmt.Sprintf("batch aborted before this scene ran: %v", ctxErr),
		}, nil
	}

	e.fireStatus(task.SceneID, StatusRunning, "", 0, 0)

	// The binary is never invoked for a scene missing its input mesh.
	if _, statErr := os.Stat(task.PlyPath); statErr != nil {
		return TaskOutcome{
			SceneID: task.SceneID,
			Status:  StatusFailed,
			Reason:  ReasonMissingInput,
			Detail:  fmt.Sprintf("%v: %s", ErrMissingInput, task.PlyPath),
		}, nil
	}

	if _, invokeErr := e.invoker.Invoke(ctx, task); invokeErr != nil {
		if errors.Is(invokeErr, ErrBinaryNotExecutable) {
			return TaskOutcome{
				SceneID: task.SceneID,
				Status:  StatusFailed,
				Reason:  ReasonUnexpectedError,
				Detail:  invokeErr.Error(),
			}, invokeErr
		}
		return TaskOutcome{
			SceneID: task.SceneID,
			Status:  StatusFailed,
			Reason:  ReasonInvocation,
			Detail:  invokeErr.Error(),
		}, nil
	}

	if resolveErr := ResolveOutput(task, e.opts.Threshold, e.logger); resolveErr != nil {
		reason := ReasonUnexpectedError
		switch {
		case errors.Is(resolveErr, ErrNoOutputGenerated):
			reason = ReasonNoOutput
		case errors.Is(resolveErr, ErrInvalidOutputFormat):
			reason = ReasonInvalidOutput
		}
		return TaskOutcome{
			SceneID: task.SceneID,
			Status:  StatusFailed,
			Reason:  reason,
			Detail:  resolveErr.Error(),
		}, nil
	}

	return TaskOutcome{SceneID: task.SceneID, Status: StatusSucceeded}, nil
}

// aggregateOutcomes is the single consumer of the outcomes channel. It owns
// all report mutation and fires the per-outcome progress hook.
func (e *Engine) aggregateOutcomes(outcomeChan <-chan TaskOutcome, total int, done chan<- struct{}) {
	defer close(done)
	completed := 0
	for outcome := range outcomeChan {
		completed++
		e.aggregator.add(outcome)
		if outcome.Status == StatusSucceeded {
			e.logger.Debug("Scene succeeded", slog.String("scene", outcome.SceneID), slog.Int("completed", completed), slog.Int("total", total))
		} else {
			e.logger.Warn("Scene failed",
				slog.String("scene", outcome.SceneID),
				slog.String("reason", string(outcome.Reason)),
				slog.String("detail", outcome.Detail),
				slog.Int("completed", completed),
				slog.Int("total", total),
			)
		}
		e.fireStatus(outcome.SceneID, outcome.Status, outcome.Detail, completed, total)
	}
}

func (e *Engine) fireStatus(sceneID string, status Status, message string, completed, total int) {
	if hookErr := e.opts.EventHooks.OnSceneStatusUpdate(sceneID, status, message, completed, total); hookErr != nil {
		e.logger.Warn("OnSceneStatusUpdate hook returned an error", slog.String("scene", sceneID), slog.String("error", hookErr.Error()))
	}
}

func (e *Engine) fireRunComplete(report Report) {
	if hookErr := e.opts.EventHooks.OnRunComplete(report); hookErr != nil {
		e.logger.Warn("OnRunComplete hook returned an error", slog.String("error", hookErr.Error()))
	}
}

func (e *Engine) buildReport(startTime time.Time, scenesFound, skippedExisting, dispatched int, fatalErr error) Report {
	success, fail, failures := e.aggregator.snapshot()
	fatal := ""
	if fatalErr != nil {
		fatal = fatalErr.Error()
	}
	return Report{
		Summary: ReportSummary{
			InputDir:        e.opts.InputDir,
			OutputDir:       e.opts.OutputDir,
			ConfigFilePath:  e.opts.ConfigFilePath,
			ScenesFound:     scenesFound,
			SkippedExisting: skippedExisting,
			Dispatched:      dispatched,
			SuccessCount:    success,
			FailCount:       fail,
			FatalError:      fatal,
			DurationSeconds: time.Since(startTime).Seconds(),
			WorkerCount:     e.opts.WorkerCount,
			Threshold:       e.opts.Threshold,
			MinVertexCount:  e.opts.MinVertexCount,
			Timestamp:       time.Now().UTC(),
			SchemaVersion:   ReportSchemaVersion,
		},
		Failures: failures,
	}
}

// batchAccumulator collects outcomes during the run. The aggregator
// goroutine is the only writer; the mutex also covers the final snapshot
// read.
type batchAccumulator struct {
	mu       sync.Mutex
	success  int
	fail     int
	failures []FailureInfo
}

func newBatchAccumulator() *batchAccumulator {
	return &batchAccumulator{failures: make([]FailureInfo, 0, 32)}
}

func (a *batchAccumulator) add(outcome TaskOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if outcome.Status == StatusSucceeded {
		a.success++
		return
	}
	a.fail++
	a.failures = append(a.failures, FailureInfo{
		SceneID: outcome.SceneID,
		Reason:  outcome.Reason,
		Detail:  outcome.Detail,
	})
}

func (a *batchAccumulator) snapshot() (success, fail int, failures []FailureInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	failures = make([]FailureInfo, len(a.failures))
	copy(failures, a.failures)
	return a.success, a.fail, failures
}
