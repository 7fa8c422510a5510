package domain

import "time"

// RunStatus is the lifecycle state of one export run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Artifact stages. Each stage's output is persisted once per partition or
// finding group so an interrupted run can be resumed without refetching.
const (
	StageResources = "resources"
	StagePolicies  = "policies"
)

// Run records one pipeline execution in the run store.
type Run struct {
	// ID is the run's uuid.
	ID string

	StartedAt  time.Time
	FinishedAt time.Time

	Status RunStatus

	// Counters filled in when the run finishes.
	Resources int
	WorkUnits int
	Findings  int
	Records   int
	Errors    int
}

// Artifact is one persisted intermediate collection: a partition's projected
// resources or a numbered finding group, stored as JSON. Artifacts exist for
// resumability and post-mortem only; the primary stage handoff is in memory.
type Artifact struct {
	RunID string

	// Stage is StageResources or StagePolicies.
	Stage string

	// Label identifies the producer within the stage: the partition's
	// artifact label, or the group sequence for the detail stage.
	Label string

	// Seq orders artifacts within a stage.
	Seq int

	// Payload is the JSON-encoded collection.
	Payload []byte

	CreatedAt time.Time
}
