package model

// Classification is the error classifier's verdict on a failed step.
type Classification string

const (
	// ClassTransient marks failures worth one local retry (network blip, timeout).
	ClassTransient Classification = "Transient"
	// ClassUserActionable marks failures the user or planner can remediate.
	ClassUserActionable Classification = "UserActionable"
	// ClassFatal marks failures that end the request regardless of remaining steps.
	ClassFatal Classification = "Fatal"
)

// Outcome describes how a request ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeAborted marks a request stopped by the step budget, failing closed.
	OutcomeAborted Outcome = "aborted"
)

// Failure is the last recorded failure of a session, kept so follow-up turns
// and planner prompts can reference it.
type Failure struct {
	StepID         string         `json:"stepId,omitempty"`
	Kind           StepKind       `json:"kind,omitempty"`
	Description    string         `json:"description,omitempty"`
	Excerpt        string         `json:"excerpt,omitempty"`
	Classification Classification `json:"classification,omitempty"`
}
