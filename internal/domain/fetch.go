package domain

import "time"

// FetchRecord describes the outcome of one per-event precursor fetch.
type FetchRecord struct {
	RunID     string
	MainEvent int
	File      string
	URL       string
	Rows      int
	Bytes     int64
	Skipped   bool
	At        time.Time
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunSummary aggregates the fetches of one pipeline run.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     RunStatus
	Error      string
	Fetched    int
	Skipped    int
	Rows       int
	Bytes      int64
}

// Pipeline stages, in execution order.
const (
	StageIdle       = "idle"
	StageMainEvents = "main_events"
	StagePrecursors = "precursors"
	StagePublish    = "publish"
	StagePlot       = "plot"
	StageDone       = "done"
	StageFailed     = "failed"
)

// PipelineStatus is a point-in-time view of a running pipeline.
type PipelineStatus struct {
	Stage      string `json:"stage"`
	MainEvents int    `json:"main_events"`
	Processed  int    `json:"processed"`
}
