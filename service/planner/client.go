package planner

import "context"

// Client is the natural-language boundary: given the intent and observable
// session context it proposes the next step. Proposals are untrusted advisory
// input; the planner validates them into the recognized step kind set before
// anything executes.
type Client interface {
	ProposeStep(ctx context.Context, request *Request) (*Proposal, error)
}

// Request carries the intent and the session context the NL service may see.
type Request struct {
	Intent           string          `json:"intent"`
	Host             string          `json:"host,omitempty"`
	WorkingDirectory string          `json:"workingDirectory,omitempty"`
	RecentHistory    []*HistoryEntry `json:"recentHistory,omitempty"`
	LastObservation  string          `json:"lastObservation,omitempty"`
	StepsTaken       int             `json:"stepsTaken,omitempty"`
}

// HistoryEntry is one executed step rendered for the NL boundary.
type HistoryEntry struct {
	Kind           string `json:"kind"`
	Description    string `json:"description,omitempty"`
	ExitCode       int    `json:"exitCode,omitempty"`
	Excerpt        string `json:"excerpt,omitempty"`
	Classification string `json:"classification,omitempty"`
	Answer         string `json:"answer,omitempty"`
}

// Proposal is the NL service's answer: one candidate step, or done.
type Proposal struct {
	Kind    string                 `json:"kind,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Done    bool                   `json:"done,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
}
