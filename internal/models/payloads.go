package models

// These structs define the JSON payloads exchanged between the continuation
// workflow, the scheduler trigger and the ingest function.

// Trigger sources recorded on each run.
const (
	TriggerScheduler    = "scheduler"
	TriggerContinuation = "continuation"
	TriggerOperator     = "operator"
	TriggerWorker       = "worker"
)

// RunRequest is the input for one bounded ingest run.
type RunRequest struct {
	Source string `json:"source"`
	// ExecutionName is the continuation execution that invoked this run, if any.
	ExecutionName string `json:"executionName,omitempty"`
	RebuildQueue  bool   `json:"rebuildQueue,omitempty"`
}

// RunResponse is the output of the ingest function.
type RunResponse struct {
	Status string     `json:"status"`
	Report *RunReport `json:"report,omitempty"`
}

// RunReport summarises what one run did.
type RunReport struct {
	RunID      string   `json:"runId"`
	Acquired   bool     `json:"acquired"`
	QueueBuilt bool     `json:"queueBuilt"`
	QueueSize  int      `json:"queueSize"`
	Attempted  int      `json:"attempted"`
	Published  int      `json:"published"`
	Skipped    int      `json:"skipped"`
	Warnings   int      `json:"warnings"`
	Failures   int      `json:"failures"`
	Remaining  int      `json:"remaining"`
	Continued  bool     `json:"continued"`
	Artifacts  []string `json:"artifacts,omitempty"`
}

// ContinuationArgument is the argument passed to the continuation workflow.
type ContinuationArgument struct {
	RunURL       string `json:"runUrl"`
	DelaySeconds int    `json:"delaySeconds"`
	Source       string `json:"source"`
}
