package segbatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
)

// Invoker runs the segmentator binary for one scene. It is an interface so
// the engine can be exercised without spawning processes.
type Invoker interface {
	// Invoke blocks until the process exits. It returns an error wrapping
	// ErrBinaryNotExecutable if the process could not be launched, an error
	// wrapping ErrInvocationFailed if it exited non-zero, and the captured
	// InvocationResult otherwise. No timeout is applied; a hung segmentator
	// occupies its worker until it exits.
	Invoke(ctx context.Context, task SceneTask) (InvocationResult, error)
}

// execInvoker is the os/exec-backed Invoker.
type execInvoker struct {
	binaryPath     string
	threshold      float64
	minVertexCount int
	logger         *slog.Logger
}

// NewExecInvoker returns an Invoker that runs binaryPath as
// "binary <ply> <threshold> <minVertexCount>" with the scene directory as
// working directory, since the segmentator writes its output beside its
// input.
func NewExecInvoker(binaryPath string, threshold float64, minVertexCount int, loggerHandler slog.Handler) Invoker {
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(loggerHandler).With(slog.String("component", "invoker"))
	return &execInvoker{
		binaryPath:     binaryPath,
		threshold:      threshold,
		minVertexCount: minVertexCount,
		logger:         logger,
	}
}

func (e *execInvoker) Invoke(ctx context.Context, task SceneTask) (InvocationResult, error) {
	args := []string{
		task.PlyPath,
		strconv.FormatFloat(e.threshold, 'f', -1, 64),
		strconv.Itoa(e.minVertexCount),
	}
	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	cmd.Dir = task.SceneDir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	e.logger.Debug("Invoking segmentator", slog.String("scene", task.SceneID), slog.Any("args", args))

	if startErr := cmd.Start(); startErr != nil {
		e.logger.Error("Failed to start segmentator process", slog.String("binary", e.binaryPath), slog.String("error", startErr.Error()))
		return InvocationResult{}, fmt.Errorf("%w: %q: %v", ErrBinaryNotExecutable, e.binaryPath, startErr)
	}

	// Wait always runs, so the process is reaped and both streams are fully
	// drained on every exit path.
	waitErr := cmd.Wait()
	result := InvocationResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdoutBuf.Bytes(),
		Stderr:   stderrBuf.Bytes(),
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			e.logger.Debug("Segmentator exited non-zero",
				slog.String("scene", task.SceneID),
				slog.Int("exitCode", result.ExitCode),
			)
			return result, fmt.Errorf("%w: exit code %d: %s", ErrInvocationFailed, result.ExitCode, bytes.TrimSpace(result.Stderr))
		}
		// Wait failed for a non-exit reason (I/O on the pipes, signal
		// delivery); still a per-scene failure, not a batch abort.
		return result, fmt.Errorf("%w: %v", ErrInvocationFailed, waitErr)
	}

	return result, nil
}
