package executor

import "time"

// Output represents a captured command result. Stdout and Stderr hold the
// tail of the captured stream when Truncated is set; TotalBytes counts the
// bytes captured before truncation.
type Output struct {
	ExitCode   int           `json:"exitCode"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	Truncated  bool          `json:"truncated,omitempty"`
	TotalBytes int           `json:"totalBytes,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Success reports whether the command exited zero.
func (o *Output) Success() bool {
	return o.ExitCode == 0
}

// Clone composite stages, reported when a sub-step aborts the composite.
const (
	StagePrecheck = "precheck"
	StageClone    = "clone"
	StageVerify   = "verify"
)

// CloneOutput represents the result of an atomic clone composite. Stage names
// the last sub-step that ran; on failure it identifies the aborting one.
type CloneOutput struct {
	Output
	Stage       string `json:"stage,omitempty"`
	Destination string `json:"destination,omitempty"`
}
