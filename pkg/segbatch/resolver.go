package segbatch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// segsDocumentSchema is the structural contract of a segmentation artifact:
// segIndices must be present and map each vertex index to an integer segment
// identifier.
const segsDocumentSchema = `{
  "type": "object",
  "required": ["segIndices"],
  "properties": {
    "segIndices": {
      "type": "array",
      "items": {"type": "integer"}
    }
  }
}`

// Candidate is one possible segmentator output file, reduced to the two
// attributes selection needs. Keeping selection free of filesystem access
// lets it be tested with synthetic candidate lists.
type Candidate struct {
	Name    string
	ModTime time.Time
}

// FormatThreshold renders the threshold the way the segmentator embeds it in
// its output filename, e.g. 0.01 -> "0.010000".
func FormatThreshold(threshold float64) string {
	return fmt.Sprintf("%.6f", threshold)
}

// SelectCandidate picks one candidate filename. Candidates whose name
// contains the 6-decimal threshold string win, lexicographically first among
// them. With no exact match the most recently modified candidate wins,
// lexicographically last among equal timestamps. Returns false only for an
// empty candidate list.
func SelectCandidate(candidates []Candidate, threshold float64) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	thresholdStr := FormatThreshold(threshold)
	var exact []string
	for _, c := range candidates {
		if strings.Contains(c.Name, thresholdStr) {
			exact = append(exact, c.Name)
		}
	}
	if len(exact) > 0 {
		sort.Strings(exact)
		return exact[0], true
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ModTime.After(best.ModTime) {
			best = c
			continue
		}
		if c.ModTime.Equal(best.ModTime) && c.Name > best.Name {
			best = c
		}
	}
	return best.Name, true
}

// ResolveOutput locates the artifact the segmentator wrote for task,
// validates its structure, and copies it to the task's canonical output
// path. The original candidate is never deleted or modified.
func ResolveOutput(task SceneTask, threshold float64, logger *slog.Logger) error {
	pattern := filepath.Join(task.SceneDir, task.SceneID+CandidateGlobSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		// Only possible with a malformed pattern; scene IDs are plain
		// directory names, so treat it as an unexpected per-scene failure.
		return fmt.Errorf("globbing %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: no file matching %q", ErrNoOutputGenerated, filepath.Base(pattern))
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		info, statErr := os.Stat(m)
		if statErr != nil {
			logger.Warn("Cannot stat candidate, ignoring", slog.String("path", m), slog.String("error", statErr.Error()))
			continue
		}
		candidates = append(candidates, Candidate{Name: filepath.Base(m), ModTime: info.ModTime()})
	}
	chosenName, ok := SelectCandidate(candidates, threshold)
	if !ok {
		return fmt.Errorf("%w: all candidates vanished before selection", ErrNoOutputGenerated)
	}
	chosenPath := filepath.Join(task.SceneDir, chosenName)
	logger.Debug("Selected segmentation candidate",
		slog.String("scene", task.SceneID),
		slog.String("candidate", chosenName),
		slog.Int("candidates", len(candidates)),
	)

	if err := validateSegsDocument(chosenPath); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(task.OutputPath), 0755); err != nil {
		return fmt.Errorf("creating output directory for %q: %w", task.OutputPath, err)
	}
	if err := copyFile(chosenPath, task.OutputPath); err != nil {
		return fmt.Errorf("copying %q to %q: %w", chosenPath, task.OutputPath, err)
	}
	return nil
}

// validateSegsDocument checks path against segsDocumentSchema.
func validateSegsDocument(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: cannot read %q: %v", ErrInvalidOutputFormat, path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(segsDocumentSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		// Unparseable JSON surfaces here rather than as a schema violation.
		return fmt.Errorf("%w: %q: %v", ErrInvalidOutputFormat, filepath.Base(path), err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("%w: %q: %s", ErrInvalidOutputFormat, filepath.Base(path), strings.Join(details, "; "))
	}
	return nil
}

// copyFile copies src to dst without touching src.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
