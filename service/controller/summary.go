package controller

import (
	"fmt"
	"strings"
	"time"

	"github.com/viant/opsly/model"
	"github.com/viant/opsly/progress"
)

// renderSummary builds the final user-facing text: a plain-language outcome
// line, the recent steps with per-step status and duration, and the progress
// counters.
func renderSummary(outcome model.Outcome, reason string, steps []*model.Step, tracker *progress.Progress) string {
	var builder strings.Builder
	builder.WriteString(outcomeLine(outcome, reason))
	for _, step := range steps {
		builder.WriteString("\n- ")
		builder.WriteString(stepLine(step))
	}
	if summary := tracker.Summary(); summary != "" {
		builder.WriteString("\n")
		builder.WriteString(summary)
	}
	return builder.String()
}

func outcomeLine(outcome model.Outcome, reason string) string {
	reason = strings.TrimSpace(reason)
	switch outcome {
	case model.OutcomeCompleted:
		if reason == "" || reason == "done" {
			return "Done."
		}
		return "Done: " + reason
	case model.OutcomeCancelled:
		if reason == "" {
			return "Cancelled."
		}
		return "Cancelled: " + reason
	default:
		if reason == "" {
			return "Stopped."
		}
		return "Stopped: " + reason
	}
}

func stepLine(step *model.Step) string {
	status := stepStatus(step)
	if step.Kind == model.KindAskUser {
		text := fmt.Sprintf("%v %q", status, step.Ask().Question)
		if step.Answer != "" {
			text += fmt.Sprintf(" -> %q", step.Answer)
		}
		return text
	}
	line := fmt.Sprintf("%v `%v`", status, commandOf(step))
	if step.Result != nil && step.Result.Duration > 0 {
		line += fmt.Sprintf(" (%v)", step.Result.Duration.Round(100*time.Millisecond))
	}
	return line
}

func stepStatus(step *model.Step) string {
	switch {
	case step.Kind == model.KindAskUser:
		return "asked"
	case step.Result == nil:
		return "planned"
	case step.Result.Success():
		return "ok"
	default:
		return fmt.Sprintf("exit %d", step.Result.ExitCode)
	}
}
