package pipeline

import (
	"time"

	"spacegun/internal/domain"
)

// Step outcomes recorded in a run.
const (
	StepSucceeded = "succeeded"
	StepFailed    = "failed"
)

// StepRecord is the trace of one executed step.
type StepRecord struct {
	Name      string        `json:"name" yaml:"name"`
	Type      StepType      `json:"type" yaml:"type"`
	Outcome   string        `json:"outcome" yaml:"outcome"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// RunResult is the outcome of one pipeline run.
type RunResult struct {
	RunID      string          `json:"runId" yaml:"runId"`
	Pipeline   string          `json:"pipeline" yaml:"pipeline"`
	StartedAt  time.Time       `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt" yaml:"finishedAt"`
	Steps      []StepRecord    `json:"steps" yaml:"steps"`
	Plan       *domain.JobPlan `json:"plan,omitempty" yaml:"plan,omitempty"`
	// Error is the message of Err, kept for transport.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// Err is the error of the last executed step when it failed.
	Err error `json:"-" yaml:"-"`
}

// Succeeded reports whether the last executed step succeeded.
func (r *RunResult) Succeeded() bool {
	return r.Err == nil && r.Error == ""
}

// runState is the data one run threads through its steps.
type runState struct {
	pipeline  *PipelineDescription
	plan      *domain.JobPlan
	snapshots []*domain.ClusterSnapshot
	lastError error
	notified  bool
}
