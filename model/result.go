package model

import (
	"strings"
	"time"
)

// Result captures the observable outcome of an executed step. Stdout and
// Stderr hold excerpts bounded by the executor; Truncated marks that the
// excerpt dropped leading output, with TotalBytes preserving the full size.
type Result struct {
	ExitCode   int           `json:"exitCode"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	Truncated  bool          `json:"truncated,omitempty"`
	TotalBytes int           `json:"totalBytes,omitempty"`
	Stage      string        `json:"stage,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Success reports whether the step exited cleanly.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Excerpt returns the most relevant output for user display or planner
// context: stderr when present, otherwise stdout.
func (r *Result) Excerpt() string {
	if r == nil {
		return ""
	}
	if text := strings.TrimSpace(r.Stderr); text != "" {
		return text
	}
	return strings.TrimSpace(r.Stdout)
}
