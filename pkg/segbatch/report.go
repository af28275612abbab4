package segbatch

import "time"

// Report summarizes the result of a single batch run.
type Report struct {
	Summary  ReportSummary `json:"summary"`
	Failures []FailureInfo `json:"failures"`
}

// ReportSummary contains aggregated statistics for a batch run.
type ReportSummary struct {
	InputDir        string    `json:"inputDir"`
	OutputDir       string    `json:"outputDir"`
	ConfigFilePath  string    `json:"configFilePath,omitempty"`
	ScenesFound     int       `json:"scenesFound"`
	SkippedExisting int       `json:"skippedExisting"`
	Dispatched      int       `json:"dispatched"`
	SuccessCount    int       `json:"successCount"`
	FailCount       int       `json:"failCount"`
	FatalError      string    `json:"fatalError,omitempty"`
	DurationSeconds float64   `json:"durationSeconds"`
	WorkerCount     int       `json:"workerCount"`
	Threshold       float64   `json:"threshold"`
	MinVertexCount  int       `json:"minVertexCount"`
	Timestamp       time.Time `json:"timestamp"`
	SchemaVersion   string    `json:"schemaVersion"`
}

// FailureInfo details one failed scene in the ledger. Entries appear in
// completion order, which under concurrency is not scene order.
type FailureInfo struct {
	SceneID string        `json:"sceneId"`
	Reason  FailureReason `json:"reason"`
	Detail  string        `json:"detail,omitempty"`
}
