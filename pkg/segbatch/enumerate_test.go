package segbatch_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiYuxian0306/ScanNet/internal/testutil"
	"github.com/LiYuxian0306/ScanNet/pkg/segbatch"
)

// recordingHooks captures hook traffic for assertions. Thread-safe.
type recordingHooks struct {
	mu         sync.Mutex
	discovered []string
	statuses   map[string][]segbatch.Status
	reports    []segbatch.Report
}

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{statuses: make(map[string][]segbatch.Status)}
}

func (h *recordingHooks) OnSceneDiscovered(sceneID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discovered = append(h.discovered, sceneID)
	return nil
}

func (h *recordingHooks) OnSceneStatusUpdate(sceneID string, status segbatch.Status, message string, completed, total int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses[sceneID] = append(h.statuses[sceneID], status)
	return nil
}

func (h *recordingHooks) OnRunComplete(report segbatch.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, report)
	return nil
}

func (h *recordingHooks) terminalStatuses(sceneID string) []segbatch.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []segbatch.Status
	for _, s := range h.statuses[sceneID] {
		if s == segbatch.StatusSucceeded || s == segbatch.StatusFailed || s == segbatch.StatusSkipped {
			out = append(out, s)
		}
	}
	return out
}

func TestEnumerateTasks(t *testing.T) {
	t.Run("FiltersByScenePrefixAndDirKind", func(t *testing.T) {
		scansDir := t.TempDir()
		outputDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00")
		testutil.CreateSceneDir(t, scansDir, "scene0001_00")
		testutil.CreateDummyDir(t, filepath.Join(scansDir, "checkpoints"))
		testutil.CreateDummyFile(t, filepath.Join(scansDir, "scene_list.txt"), "x")

		opts := &segbatch.Options{
			InputDir:   scansDir,
			OutputDir:  outputDir,
			EventHooks: &segbatch.NoOpHooks{},
		}
		tasks, skipped, err := segbatch.EnumerateTasks(opts, discardLogger())
		require.NoError(t, err)
		assert.Zero(t, skipped)
		require.Len(t, tasks, 2)

		assert.Equal(t, "scene0000_00", tasks[0].SceneID)
		assert.Equal(t, "scene0001_00", tasks[1].SceneID)
		assert.Equal(t, filepath.Join(scansDir, "scene0000_00"), tasks[0].SceneDir)
		assert.Equal(t, filepath.Join(scansDir, "scene0000_00", "scene0000_00_vh_clean_2.ply"), tasks[0].PlyPath)
		assert.Equal(t, filepath.Join(outputDir, "scene0000_00_vh_clean_2.0.010000.segs.json"), tasks[0].OutputPath)
	})

	t.Run("NoScenesIsAnError", func(t *testing.T) {
		scansDir := t.TempDir()
		testutil.CreateDummyDir(t, filepath.Join(scansDir, "not-a-scene"))

		opts := &segbatch.Options{
			InputDir:   scansDir,
			OutputDir:  t.TempDir(),
			EventHooks: &segbatch.NoOpHooks{},
		}
		_, _, err := segbatch.EnumerateTasks(opts, discardLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, segbatch.ErrNoScenes)
	})

	t.Run("SkipExistingFiltersCompletedScenes", func(t *testing.T) {
		scansDir := t.TempDir()
		outputDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00")
		testutil.CreateSceneDir(t, scansDir, "scene0001_00")
		testutil.CreateDummyFile(t, filepath.Join(outputDir, "scene0000_00_vh_clean_2.0.010000.segs.json"), testutil.ValidSegsJSON)

		hooks := newRecordingHooks()
		opts := &segbatch.Options{
			InputDir:     scansDir,
			OutputDir:    outputDir,
			SkipExisting: true,
			EventHooks:   hooks,
		}
		tasks, skipped, err := segbatch.EnumerateTasks(opts, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 1, skipped)
		require.Len(t, tasks, 1)
		assert.Equal(t, "scene0001_00", tasks[0].SceneID)

		assert.Equal(t, []string{"scene0001_00"}, hooks.discovered)
		assert.Equal(t, []segbatch.Status{segbatch.StatusSkipped}, hooks.statuses["scene0000_00"])
	})

	t.Run("AllScenesSkippedIsNotAnError", func(t *testing.T) {
		scansDir := t.TempDir()
		outputDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00")
		testutil.CreateDummyFile(t, filepath.Join(outputDir, "scene0000_00_vh_clean_2.0.010000.segs.json"), testutil.ValidSegsJSON)

		opts := &segbatch.Options{
			InputDir:     scansDir,
			OutputDir:    outputDir,
			SkipExisting: true,
			EventHooks:   &segbatch.NoOpHooks{},
		}
		tasks, skipped, err := segbatch.EnumerateTasks(opts, discardLogger())
		require.NoError(t, err)
		assert.Empty(t, tasks)
		assert.Equal(t, 1, skipped)
	})

	t.Run("WithoutSkipExistingCompletedScenesAreKept", func(t *testing.T) {
		scansDir := t.TempDir()
		outputDir := t.TempDir()
		testutil.CreateSceneDir(t, scansDir, "scene0000_00")
		testutil.CreateDummyFile(t, filepath.Join(outputDir, "scene0000_00_vh_clean_2.0.010000.segs.json"), testutil.ValidSegsJSON)

		opts := &segbatch.Options{
			InputDir:   scansDir,
			OutputDir:  outputDir,
			EventHooks: &segbatch.NoOpHooks{},
		}
		tasks, skipped, err := segbatch.EnumerateTasks(opts, discardLogger())
		require.NoError(t, err)
		assert.Zero(t, skipped)
		assert.Len(t, tasks, 1)
	})
}
