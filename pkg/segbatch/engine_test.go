package segbatch_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LiYuxian0306/ScanNet/internal/testutil"
	"github.com/LiYuxian0306/ScanNet/pkg/segbatch"
)

// funcInvoker adapts a function to the segbatch.Invoker interface and counts
// invocations per scene.
type funcInvoker struct {
	fn    func(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error)
	mu    sync.Mutex
	calls map[string]int
}

func newFuncInvoker(fn func(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error)) *funcInvoker {
	return &funcInvoker{fn: fn, calls: make(map[string]int)}
}

func (f *funcInvoker) Invoke(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error) {
	f.mu.Lock()
	f.calls[task.SceneID]++
	f.mu.Unlock()
	return f.fn(ctx, task)
}

func (f *funcInvoker) callCount(sceneID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[sceneID]
}

// writeSegsOnInvoke simulates a well-behaved segmentator: it drops a valid
// artifact beside the input mesh and exits zero.
func writeSegsOnInvoke(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error) {
	path := filepath.Join(task.SceneDir, task.SceneID+"_vh_clean_2.0.010000.segs.json")
	if err := os.WriteFile(path, []byte(testutil.ValidSegsJSON), 0644); err != nil {
		return segbatch.InvocationResult{}, err
	}
	return segbatch.InvocationResult{ExitCode: 0}, nil
}

func newEngineOptions(t *testing.T, scansDir, outputDir string, invoker segbatch.Invoker) segbatch.Options {
	t.Helper()
	return segbatch.Options{
		InputDir:       scansDir,
		OutputDir:      outputDir,
		Threshold:      segbatch.DefaultThreshold,
		MinVertexCount: segbatch.DefaultMinVertexCount,
		WorkerCount:    segbatch.DefaultWorkerCount,
		Logger:         slog.NewTextHandler(io.Discard, nil),
		Invoker:        invoker,
	}
}

func TestNewEngineValidation(t *testing.T) {
	invoker := newFuncInvoker(writeSegsOnInvoke)

	t.Run("NilLogger", func(t *testing.T) {
		opts := newEngineOptions(t, t.TempDir(), t.TempDir(), invoker)
		opts.Logger = nil
		_, err := segbatch.NewEngine(opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, segbatch.ErrConfigValidation)
	})

	t.Run("MissingInputDir", func(t *testing.T) {
		opts := newEngineOptions(t, filepath.Join(t.TempDir(), "absent"), t.TempDir(), invoker)
		_, err := segbatch.NewEngine(opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, segbatch.ErrConfigValidation)
	})

	t.Run("ZeroWorkers", func(t *testing.T) {
		opts := newEngineOptions(t, t.TempDir(), t.TempDir(), invoker)
		opts.WorkerCount = 0
		_, err := segbatch.NewEngine(opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, segbatch.ErrConfigValidation)
	})

	t.Run("NoInvokerRequiresBinaryPath", func(t *testing.T) {
		opts := newEngineOptions(t, t.TempDir(), t.TempDir(), nil)
		_, err := segbatch.NewEngine(opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, segbatch.ErrConfigValidation)
	})
}

func TestEngineRun(t *testing.T) {
	t.Run("AllScenesSucceed", func(t *testing.T) {
		scansDir := t.TempDir()
		outputDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00")
		testutil.CreateSceneDir(t, scansDir, "scene0001_00")

		opts := newEngineOptions(t, scansDir, outputDir, newFuncInvoker(writeSegsOnInvoke))
		report, err := segbatch.Run(context.Background(), opts)
		require.NoError(t, err)

		assert.Equal(t, 2, report.Summary.ScenesFound)
		assert.Equal(t, 2, report.Summary.Dispatched)
		assert.Equal(t, 2, report.Summary.SuccessCount)
		assert.Zero(t, report.Summary.FailCount)
		assert.Empty(t, report.Failures)
		assert.Empty(t, report.Summary.FatalError)

		for _, sceneID := range []string{"scene0000_00", "scene0001_00"} {
			_, statErr := os.Stat(filepath.Join(outputDir, sceneID+"_vh_clean_2.0.010000.segs.json"))
			assert.NoError(t, statErr)
		}
	})

	t.Run("MissingMeshFailsWithoutInvocation", func(t *testing.T) {
		scansDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00")
		testutil.CreateDummyDir(t, filepath.Join(scansDir, "scene0001_00")) // no mesh inside

		invoker := newFuncInvoker(writeSegsOnInvoke)
		opts := newEngineOptions(t, scansDir, t.TempDir(), invoker)
		report, err := segbatch.Run(context.Background(), opts)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Summary.SuccessCount)
		assert.Equal(t, 1, report.Summary.FailCount)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, "scene0001_00", report.Failures[0].SceneID)
		assert.Equal(t, segbatch.ReasonMissingInput, report.Failures[0].Reason)
		assert.Zero(t, invoker.callCount("scene0001_00"), "the binary must never run for a scene missing its mesh")
	})

	t.Run("InvocationFailureIsIsolated", func(t *testing.T) {
		scansDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00")
		testutil.CreateSceneDir(t, scansDir, "scene0001_00")

		invoker := newFuncInvoker(func(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error) {
			if task.SceneID == "scene0000_00" {
				return segbatch.InvocationResult{ExitCode: 1}, fmt.Errorf("%w: exit code 1: boom", segbatch.ErrInvocationFailed)
			}
			return writeSegsOnInvoke(ctx, task)
		})
		opts := newEngineOptions(t, scansDir, t.TempDir(), invoker)
		report, err := segbatch.Run(context.Background(), opts)
		require.NoError(t, err, "per-scene failures must not fail the run")

		assert.Equal(t, 1, report.Summary.SuccessCount)
		assert.Equal(t, 1, report.Summary.FailCount)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, segbatch.ReasonInvocation, report.Failures[0].Reason)
		assert.Contains(t, report.Failures[0].Detail, "boom")
	})

	t.Run("NoOutputAndInvalidOutputClassification", func(t *testing.T) {
		scansDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00") // exits zero, writes nothing
		testutil.CreateSceneDir(t, scansDir, "scene0001_00") // writes garbage

		invoker := newFuncInvoker(func(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error) {
			if task.SceneID == "scene0001_00" {
				path := filepath.Join(task.SceneDir, task.SceneID+"_vh_clean_2.0.010000.segs.json")
				require.NoError(t, os.WriteFile(path, []byte(testutil.InvalidSegsJSON), 0644))
			}
			return segbatch.InvocationResult{ExitCode: 0}, nil
		})
		opts := newEngineOptions(t, scansDir, t.TempDir(), invoker)
		report, err := segbatch.Run(context.Background(), opts)
		require.NoError(t, err)

		require.Len(t, report.Failures, 2)
		reasons := map[string]segbatch.FailureReason{}
		for _, f := range report.Failures {
			reasons[f.SceneID] = f.Reason
		}
		assert.Equal(t, segbatch.ReasonNoOutput, reasons["scene0000_00"])
		assert.Equal(t, segbatch.ReasonInvalidOutput, reasons["scene0001_00"])
	})

	t.Run("PanicInPipelineIsContained", func(t *testing.T) {
		scansDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00")
		testutil.CreateSceneDir(t, scansDir, "scene0001_00")

		invoker := newFuncInvoker(func(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error) {
			if task.SceneID == "scene0000_00" {
				panic("segfault in disguise")
			}
			return writeSegsOnInvoke(ctx, task)
		})
		opts := newEngineOptions(t, scansDir, t.TempDir(), invoker)
		report, err := segbatch.Run(context.Background(), opts)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Summary.SuccessCount)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, segbatch.ReasonUnexpectedError, report.Failures[0].Reason)
		assert.Contains(t, report.Failures[0].Detail, "segfault in disguise")
	})

	t.Run("UnlaunchableBinaryAbortsBatch", func(t *testing.T) {
		scansDir := t.TempDir()
		for i := 0; i < 6; i++ {
			testutil.CreateSceneDir(t, scansDir, fmt.Sprintf("scene%04d_00", i))
		}

		invoker := newFuncInvoker(func(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error) {
			return segbatch.InvocationResult{}, fmt.Errorf("%w: %q", segbatch.ErrBinaryNotExecutable, "/missing/segmentator")
		})
		opts := newEngineOptions(t, scansDir, t.TempDir(), invoker)
		opts.WorkerCount = 2
		report, err := segbatch.Run(context.Background(), opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, segbatch.ErrBinaryNotExecutable)
		assert.NotEmpty(t, report.Summary.FatalError)
		assert.Zero(t, report.Summary.SuccessCount)
	})

	t.Run("ExactlyOneOutcomePerScene", func(t *testing.T) {
		scansDir := t.TempDir()
		sceneIDs := make([]string, 0, 10)
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("scene%04d_00", i)
			sceneIDs = append(sceneIDs, id)
			testutil.CreateSceneDir(t, scansDir, id)
		}

		hooks := newRecordingHooks()
		invoker := newFuncInvoker(func(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error) {
			if task.SceneID == "scene0003_00" {
				return segbatch.InvocationResult{ExitCode: 1}, fmt.Errorf("%w: exit code 1", segbatch.ErrInvocationFailed)
			}
			return writeSegsOnInvoke(ctx, task)
		})
		opts := newEngineOptions(t, scansDir, t.TempDir(), invoker)
		opts.WorkerCount = 8
		opts.EventHooks = hooks
		report, err := segbatch.Run(context.Background(), opts)
		require.NoError(t, err)

		assert.Equal(t, 10, report.Summary.SuccessCount+report.Summary.FailCount)
		for _, id := range sceneIDs {
			assert.Len(t, hooks.terminalStatuses(id), 1, "scene %s must report exactly one terminal status", id)
		}
	})

	t.Run("OutcomeSetIndependentOfWorkerCount", func(t *testing.T) {
		runBatch := func(workers int) segbatch.Report {
			scansDir := t.TempDir()
			for i := 0; i < 8; i++ {
				testutil.CreateSceneDir(t, scansDir, fmt.Sprintf("scene%04d_00", i))
			}
			invoker := newFuncInvoker(func(ctx context.Context, task segbatch.SceneTask) (segbatch.InvocationResult, error) {
				// Odd-numbered scenes fail deterministically. The scene number's
				// last digit sits at index 8 of "sceneNNNN_00".
				if (task.SceneID[8]-'0')%2 == 1 {
					return segbatch.InvocationResult{ExitCode: 2}, fmt.Errorf("%w: exit code 2", segbatch.ErrInvocationFailed)
				}
				return writeSegsOnInvoke(ctx, task)
			})
			opts := newEngineOptions(t, scansDir, t.TempDir(), invoker)
			opts.WorkerCount = workers
			report, err := segbatch.Run(context.Background(), opts)
			require.NoError(t, err)
			return report
		}

		serial := runBatch(1)
		parallel := runBatch(8)

		assert.Equal(t, serial.Summary.SuccessCount, parallel.Summary.SuccessCount)
		assert.Equal(t, serial.Summary.FailCount, parallel.Summary.FailCount)

		failedScenes := func(r segbatch.Report) map[string]segbatch.FailureReason {
			m := make(map[string]segbatch.FailureReason)
			for _, f := range r.Failures {
				m[f.SceneID] = f.Reason
			}
			return m
		}
		assert.Equal(t, failedScenes(serial), failedScenes(parallel))
	})

	t.Run("SecondRunWithSkipExistingIsANoOp", func(t *testing.T) {
		scansDir := t.TempDir()
		outputDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00")
		testutil.CreateSceneDir(t, scansDir, "scene0001_00")

		invoker := newFuncInvoker(writeSegsOnInvoke)
		opts := newEngineOptions(t, scansDir, outputDir, invoker)
		opts.SkipExisting = true

		first, err := segbatch.Run(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, 2, first.Summary.SuccessCount)

		second, err := segbatch.Run(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, 2, second.Summary.SkippedExisting)
		assert.Zero(t, second.Summary.Dispatched)
		assert.Equal(t, 1, invoker.callCount("scene0000_00"), "skipped scenes must not be re-invoked")
	})

	t.Run("EmptyInputDirIsFatal", func(t *testing.T) {
		opts := newEngineOptions(t, t.TempDir(), t.TempDir(), newFuncInvoker(writeSegsOnInvoke))
		report, err := segbatch.Run(context.Background(), opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, segbatch.ErrNoScenes)
		assert.NotEmpty(t, report.Summary.FatalError)
	})

	t.Run("CancelledContextAbortsRun", func(t *testing.T) {
		scansDir := t.TempDir()
		for i := 0; i < 4; i++ {
			testutil.CreateSceneDir(t, scansDir, fmt.Sprintf("scene%04d_00", i))
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		opts := newEngineOptions(t, scansDir, t.TempDir(), newFuncInvoker(writeSegsOnInvoke))
		report, err := segbatch.Run(ctx, opts)
		require.Error(t, err)
		assert.NotEmpty(t, report.Summary.FatalError)
		assert.Zero(t, report.Summary.SuccessCount)
	})

	t.Run("MockInvokerExpectations", func(t *testing.T) {
		scansDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00")

		mockInvoker := new(testutil.MockInvoker)
		mockInvoker.On("Invoke", mock.Anything, mock.AnythingOfType("segbatch.SceneTask")).
			Run(func(args mock.Arguments) {
				task := args.Get(1).(segbatch.SceneTask)
				_, _ = writeSegsOnInvoke(context.Background(), task)
			}).
			Return(segbatch.InvocationResult{ExitCode: 0}, nil).Once()

		opts := newEngineOptions(t, scansDir, t.TempDir(), mockInvoker)
		report, err := segbatch.Run(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Summary.SuccessCount)
		mockInvoker.AssertExpectations(t)
	})
}
