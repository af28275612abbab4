package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ValidSegsJSON is a minimal well-formed segmentation document.
const ValidSegsJSON = `{"params":{"kThresh":0.01,"segMinVerts":20},"sceneId":"test","segIndices":[0,0,1,1,2]}`

// InvalidSegsJSON is syntactically valid JSON that fails segmentation
// document validation (segIndices is not an array of integers).
const InvalidSegsJSON = `{"segIndices":"not-an-array"}`

// CreateDummyFile creates a file with the given content, ensuring parent
// directories exist. It uses require assertions for test setup.
func CreateDummyFile(t *testing.T, path string, content string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	err := os.MkdirAll(filepath.Dir(fullPath), 0755)
	require.NoError(t, err, "Failed to create directory for %s", fullPath)
	err = os.WriteFile(fullPath, []byte(content), 0644)
	require.NoError(t, err, "Failed to write file %s", fullPath)
}

// CreateDummyDir ensures a directory exists at the given path, creating parents if needed.
func CreateDummyDir(t *testing.T, path string) {
	t.Helper()
	err := os.MkdirAll(filepath.Clean(path), 0755)
	require.NoError(t, err, "Failed to create directory %s", path)
}

// CreateSceneDir creates a scene directory under scansDir containing the
// cleaned mesh expected by the segmentator. Returns the scene directory path.
func CreateSceneDir(t *testing.T, scansDir, sceneID string) string {
	t.Helper()
	sceneDir := filepath.Join(scansDir, sceneID)
	CreateDummyFile(t, filepath.Join(sceneDir, sceneID+"_vh_clean_2.ply"), "ply stub")
	return sceneDir
}

// WriteSegsFile writes a segmentation result file into sceneDir using the
// conventional name for the given threshold tag (e.g. "0.010000") and
// returns its path.
func WriteSegsFile(t *testing.T, sceneDir, sceneID, thresholdTag, content string) string {
	t.Helper()
	path := filepath.Join(sceneDir, sceneID+"_vh_clean_2."+thresholdTag+".segs.json")
	CreateDummyFile(t, path, content)
	return path
}

// WriteExecutableScript writes a shell script with execute permissions and
// returns its path.
func WriteExecutableScript(t *testing.T, path, script string) string {
	t.Helper()
	fullPath := filepath.Clean(path)
	err := os.MkdirAll(filepath.Dir(fullPath), 0755)
	require.NoError(t, err, "Failed to create directory for %s", fullPath)
	err = os.WriteFile(fullPath, []byte(script), 0755)
	require.NoError(t, err, "Failed to write script %s", fullPath)
	return fullPath
}
