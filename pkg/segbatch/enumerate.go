package segbatch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// EnumerateTasks discovers scene task descriptors under opts.InputDir and
// applies the skip-existing filter. It returns the tasks to dispatch plus the
// number of scenes skipped because their canonical output already exists.
//
// A run where every discovered scene is filtered out is a normal no-op and
// returns an empty slice. Finding no scene directories at all is a
// misconfiguration and returns ErrNoScenes.
func EnumerateTasks(opts *Options, logger *slog.Logger) ([]SceneTask, int, error) {
	entries, err := os.ReadDir(opts.InputDir)
	if err != nil {
		return nil, 0, fmt.Errorf("reading input directory %q: %w", opts.InputDir, err)
	}

	// os.ReadDir returns entries sorted by name, so discovery order is
	// deterministic.
	var discovered []SceneTask
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ScenePrefix) {
			continue
		}
		sceneID := entry.Name()
		sceneDir := filepath.Join(opts.InputDir, sceneID)
		discovered = append(discovered, SceneTask{
			SceneID:    sceneID,
			SceneDir:   sceneDir,
			PlyPath:    filepath.Join(sceneDir, sceneID+InputMeshSuffix),
			OutputPath: filepath.Join(opts.OutputDir, sceneID+CanonicalOutputSuffix),
		})
	}

	if len(discovered) == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrNoScenes, opts.InputDir)
	}
	logger.Info("Discovered scene directories", slog.Int("count", len(discovered)), slog.String("inputDir", opts.InputDir))

	if !opts.SkipExisting {
		for _, task := range discovered {
			if hookErr := opts.EventHooks.OnSceneDiscovered(task.SceneID); hookErr != nil {
				logger.Warn("OnSceneDiscovered hook returned an error", slog.String("scene", task.SceneID), slog.String("error", hookErr.Error()))
			}
		}
		return discovered, 0, nil
	}

	remaining := make([]SceneTask, 0, len(discovered))
	skipped := 0
	for _, task := range discovered {
		if _, statErr := os.Stat(task.OutputPath); statErr == nil {
			skipped++
			logger.Info("Skipping scene, output already exists", slog.String("scene", task.SceneID), slog.String("output", filepath.Base(task.OutputPath)))
			if hookErr := opts.EventHooks.OnSceneStatusUpdate(task.SceneID, StatusSkipped, "output already exists", 0, 0); hookErr != nil {
				logger.Warn("OnSceneStatusUpdate hook returned an error", slog.String("scene", task.SceneID), slog.String("error", hookErr.Error()))
			}
			continue
		}
		remaining = append(remaining, task)
		if hookErr := opts.EventHooks.OnSceneDiscovered(task.SceneID); hookErr != nil {
			logger.Warn("OnSceneDiscovered hook returned an error", slog.String("scene", task.SceneID), slog.String("error", hookErr.Error()))
		}
	}
	logger.Info("Skip-existing filter applied", slog.Int("skipped", skipped), slog.Int("remaining", len(remaining)))
	return remaining, skipped, nil
}
