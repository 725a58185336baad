// Package controller implements the plan, execute, observe loop driving one
// conversational turn: it checks out the session, asks the planner for the
// next step, runs it through the policy gate and the remote executor, folds
// the observation back into the session and repeats until the planner
// terminates, a question suspends the turn or a boundary error aborts it.
package controller

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/viant/opsly/internal/clock"
	"github.com/viant/opsly/internal/idgen"
	"github.com/viant/opsly/internal/shellparse"
	"github.com/viant/opsly/model"
	"github.com/viant/opsly/model/session"
	"github.com/viant/opsly/model/turn"
	"github.com/viant/opsly/policy"
	"github.com/viant/opsly/progress"
	"github.com/viant/opsly/service/classifier"
	"github.com/viant/opsly/service/event"
	"github.com/viant/opsly/service/executor"
	"github.com/viant/opsly/service/planner"
	"github.com/viant/opsly/service/prompt"
	"github.com/viant/opsly/service/store"
	"github.com/viant/opsly/tracing"
)

const (
	defaultRetryDelay  = 3 * time.Second
	defaultSummaryTail = 5
)

// Service is the execution loop controller.
type Service struct {
	store      *store.Service
	planner    *planner.Service
	executor   *executor.Service
	classifier *classifier.Service
	questions  prompt.Service
	events     *event.Service
	policy     *policy.Policy
	host       *executor.Host

	retryDelay  time.Duration
	summaryTail int
}

// New creates a controller service
func New(options ...Option) (*Service, error) {
	s := &Service{
		retryDelay:  defaultRetryDelay,
		summaryTail: defaultSummaryTail,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if s.planner == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if s.executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if s.classifier == nil {
		rules, err := classifier.New()
		if err != nil {
			return nil, err
		}
		s.classifier = rules
	}
	return s, nil
}

// turnState carries one turn's loop-local state.
type turnState struct {
	turn        *turn.Turn
	session     *session.Session
	tracker     *progress.Progress
	stepsTaken  int
	lastFailure *model.Failure
}

// Handle runs one inbound message through the loop and returns the reply.
// The session lease is released on every path.
func (s *Service) Handle(ctx context.Context, aTurn *turn.Turn) (*turn.Reply, error) {
	sess, err := s.store.Checkout(ctx, aTurn.Key)
	if err != nil {
		return nil, err
	}

	turnCtx, cancel := context.WithCancel(ctx)
	s.store.RegisterCancel(aTurn.Key, cancel)
	defer cancel()
	turnCtx, tracker := progress.WithNewTracker(turnCtx, aTurn.ID, aTurn.Text, nil)

	turnCtx, span := tracing.StartSpan(turnCtx, "controller.turn", "SERVER")
	span.WithAttributes(map[string]string{
		"sessionKey": aTurn.Key.String(),
		"turn":       aTurn.ID,
	})
	state := &turnState{turn: aTurn, session: sess, tracker: tracker}
	reply, err := s.run(turnCtx, state)
	tracing.EndSpan(span, err)

	// the snapshot must persist even when the turn context is already gone
	if releaseErr := s.store.Release(context.Background(), aTurn.Key, sess); releaseErr != nil && err == nil {
		err = releaseErr
	}
	return reply, err
}

func (s *Service) run(ctx context.Context, state *turnState) (*turn.Reply, error) {
	sess := state.session
	if sess.Status == session.StatusAwaitingUser && sess.Pending != nil {
		if reply, err := s.resume(ctx, state); reply != nil || err != nil {
			return reply, err
		}
	} else {
		sess.Intent = state.turn.Text
	}

	for {
		sess.Status = session.StatusPlanning
		state.turn.State = turn.StatePlanning
		step, err := s.planner.NextStep(ctx, &planner.Input{
			Session:     sess,
			Intent:      sess.Intent,
			StepsTaken:  state.stepsTaken,
			LastFailure: state.lastFailure,
		})
		if err != nil {
			return s.abort(state, err)
		}
		state.tracker.Update(progress.Delta{Planned: 1})

		switch step.Kind {
		case model.KindTerminate:
			return s.finish(state, step.Termination()), nil
		case model.KindAskUser:
			return s.suspend(ctx, state, step, session.OriginClarify, step.Ask().Question, nil), nil
		}

		if reply, gated := s.gate(ctx, state, step); gated {
			if reply != nil {
				return reply, nil
			}
			continue
		}
		if err := s.executeObserve(ctx, state, step); err != nil {
			return s.abort(state, err)
		}
	}
}

// resume handles the inbound message of a session suspended on a question.
// A nil reply with nil error means the answer was folded in and planning
// continues within this turn.
func (s *Service) resume(ctx context.Context, state *turnState) (*turn.Reply, error) {
	sess := state.session
	pending := sess.Resume()
	answer := strings.TrimSpace(state.turn.Text)
	if s.questions != nil {
		_, _ = s.questions.Answer(ctx, sess.Key.String(), answer)
	}
	for i := len(sess.History) - 1; i >= 0; i-- {
		if sess.History[i].ID == pending.ID {
			sess.History[i].Answer = answer
			break
		}
	}
	if pending.Origin == session.OriginConfirm && pending.Step != nil && affirmative(answer) {
		if err := s.executeObserve(ctx, state, pending.Step); err != nil {
			return s.abort(state, err)
		}
	}
	return nil, nil
}

// gate applies the execution policy. gated=true means the step did not reach
// the executor: either the turn suspended on a confirm question (reply set)
// or the step was refused and the loop re-plans with the refusal observable.
func (s *Service) gate(ctx context.Context, state *turnState, step *model.Step) (*turn.Reply, bool) {
	command := commandOf(step)
	decision, reason := s.policy.Decide(command)
	switch decision {
	case policy.Refuse:
		step.Result = &model.Result{ExitCode: 1, Stderr: reason}
		step.Classification = model.ClassUserActionable
		state.session.Append(step)
		state.stepsTaken++
		state.lastFailure = failureOf(step)
		state.tracker.Update(progress.Delta{Failed: 1})
		s.publish(ctx, state, "stepCompleted", step.Kind, &event.StepCompleted{Step: step})
		return nil, true
	case policy.Confirm:
		question := fmt.Sprintf("Run `%s` on %s? (yes/no)", command, s.hostLabel(state.session))
		askStep := &model.Step{
			ID:        idgen.New(),
			Kind:      model.KindAskUser,
			Payload:   &model.AskUser{Question: question},
			CreatedAt: clock.Now(),
		}
		return s.suspend(ctx, state, askStep, session.OriginConfirm, question, step), true
	}
	return nil, false
}

// executeObserve runs the step with the single transient retry and folds
// every attempt into the session. Only boundary failures return an error.
func (s *Service) executeObserve(ctx context.Context, state *turnState, step *model.Step) error {
	state.session.Status = session.StatusExecuting
	current := step
	for {
		state.turn.State = turn.StateExecuting
		s.publish(ctx, state, "stepStarted", current.Kind, &event.StepStarted{Step: current})
		result, execErr := s.executeStep(ctx, state.session, current)
		if execErr != nil {
			if ctx.Err() != nil || isBoundary(execErr) {
				return execErr
			}
			result = failedResult(execErr)
		}
		state.turn.State = turn.StateObserving
		s.observe(ctx, state, current, result, execErr)

		if !current.Failed() {
			return nil
		}
		if current.Classification != model.ClassTransient || current.Attempt > 0 {
			// re-plan; the planner folds the classified failure into context
			return nil
		}

		// Transient failures retry the same step exactly once
		state.tracker.Update(progress.Delta{Retried: 1})
		if err := s.pause(ctx, s.retryDelay); err != nil {
			return err
		}
		current = &model.Step{
			ID:        idgen.New(),
			Kind:      current.Kind,
			Payload:   current.Payload,
			Attempt:   current.Attempt + 1,
			CreatedAt: clock.Now(),
		}
	}
}

// executeStep dispatches one attempt to the remote executor.
func (s *Service) executeStep(ctx context.Context, sess *session.Session, step *model.Step) (*model.Result, error) {
	switch step.Kind {
	case model.KindShellCommand:
		shell := step.Shell()
		output, err := s.executor.Execute(ctx, &executor.Input{
			Host:             s.host,
			Command:          shell.Command,
			WorkingDirectory: sess.WorkingDirectory,
			Env:              sess.Env,
			TimeoutMs:        shell.TimeoutMs,
		})
		if err != nil {
			return nil, err
		}
		return &model.Result{
			ExitCode:   output.ExitCode,
			Stdout:     output.Stdout,
			Stderr:     output.Stderr,
			Truncated:  output.Truncated,
			TotalBytes: output.TotalBytes,
			Duration:   output.Duration,
		}, nil
	case model.KindCloneRepository:
		clone := step.Clone()
		output, err := s.executor.Clone(ctx, &executor.CloneInput{
			Host:        s.host,
			URL:         clone.URL,
			Destination: clone.Destination,
		})
		if err != nil {
			return nil, err
		}
		result := &model.Result{
			ExitCode:   output.ExitCode,
			Stdout:     output.Stdout,
			Stderr:     output.Stderr,
			Truncated:  output.Truncated,
			TotalBytes: output.TotalBytes,
			Stage:      output.Stage,
			Duration:   output.Duration,
		}
		if result.Success() {
			clone.Destination = output.Destination
		}
		return result, nil
	}
	return nil, fmt.Errorf("unsupported step kind: %v", step.Kind)
}

// observe folds one executed attempt into the session: history, failure
// classification, directory and export folding on success, step event.
func (s *Service) observe(ctx context.Context, state *turnState, step *model.Step, result *model.Result, execErr error) {
	step.Result = result
	if execErr != nil || !result.Success() {
		step.Classification = s.classifier.Classify(step, result, execErr)
	}
	state.session.Append(step)
	state.stepsTaken++

	delta := progress.Delta{Executed: 1}
	if step.Failed() {
		delta.Failed = 1
		state.lastFailure = failureOf(step)
	} else {
		delta.Succeeded = 1
		s.fold(state.session, step)
	}
	state.tracker.Update(delta)
	s.publish(ctx, state, "stepCompleted", step.Kind, &event.StepCompleted{Step: step})
}

// fold updates session state after a successful step: a clone enters its
// destination, cd and export segments adjust the working directory and
// environment.
func (s *Service) fold(sess *session.Session, step *model.Step) {
	switch step.Kind {
	case model.KindCloneRepository:
		if destination := step.Clone().Destination; destination != "" {
			sess.WorkingDirectory = destination
		}
	case model.KindShellCommand:
		for _, segment := range shellparse.Segments(step.Shell().Command) {
			if dir, ok := shellparse.Chdir(segment); ok {
				sess.WorkingDirectory = resolveDir(sess.WorkingDirectory, dir)
				continue
			}
			if name, value, ok := shellparse.Export(segment); ok {
				sess.SetEnv(name, value)
			}
		}
	}
}

// suspend parks the question, marks the session AwaitingUser and returns the
// non-final reply carrying the question text.
func (s *Service) suspend(ctx context.Context, state *turnState, askStep *model.Step, origin session.PendingOrigin, question string, held *model.Step) *turn.Reply {
	sess := state.session
	pending := &session.Pending{
		ID:       askStep.ID,
		Origin:   origin,
		Question: question,
		Step:     held,
		AskedAt:  clock.Now(),
	}
	sess.Append(askStep)
	state.stepsTaken++
	sess.Suspend(pending)
	state.turn.State = turn.StateAwaitingUser
	if s.questions != nil {
		_ = s.questions.Ask(ctx, prompt.FromPending(sess.Key, pending))
	}
	state.tracker.Update(progress.Delta{Asked: 1})
	s.publish(ctx, state, "questionAsked", askStep.Kind, &event.QuestionAsked{Question: question, Origin: string(origin)})
	return &turn.Reply{Text: question, Final: false, Asked: true}
}

// finish ends the turn at a Terminate step with the final summary.
func (s *Service) finish(state *turnState, term *model.Terminate) *turn.Reply {
	sess := state.session
	outcome := term.Outcome
	if outcome == "" {
		outcome = model.OutcomeCompleted
	}
	sess.Status = session.StatusIdle
	sess.LastError = state.lastFailure
	state.turn.Outcome = outcome

	snapshot := state.tracker.Snapshot()
	text := renderSummary(outcome, term.Reason, sess.Recent(s.summaryTail), state.tracker)
	s.publish(context.Background(), state, "turnCompleted", "", &event.TurnCompleted{
		Outcome: outcome,
		Summary: text,
		Steps:   snapshot.ExecutedSteps,
	})
	return &turn.Reply{Text: text, Final: true, Steps: snapshot.ExecutedSteps, Took: state.turn.Elapsed()}
}

// abort ends the turn on a boundary error with a message naming the failure
// kind; boundary errors are never retried and raw detail stays out of the
// user-facing text.
func (s *Service) abort(state *turnState, cause error) (*turn.Reply, error) {
	sess := state.session
	sess.Status = session.StatusIdle
	sess.LastError = state.lastFailure

	outcome := model.OutcomeFailed
	var text string
	var authErr *executor.AuthenticationError
	var connErr *executor.ConnectionError
	var protoErr *planner.ProtocolError
	switch {
	case errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded):
		outcome = model.OutcomeCancelled
		text = "Cancelled."
	case errors.As(cause, &authErr):
		text = "Authentication to the host failed; please check the configured credentials."
	case errors.As(cause, &connErr):
		text = "I could not reach the host; please check connectivity and try again."
	case errors.As(cause, &protoErr):
		text = "The planning service returned an invalid step, so I stopped."
	default:
		text = "Something went wrong while processing the request, so I stopped."
	}
	state.turn.Outcome = outcome

	snapshot := state.tracker.Snapshot()
	if snapshot.ExecutedSteps > 0 {
		text = text + " (" + state.tracker.Summary() + ")"
	}
	s.publish(context.Background(), state, "turnCompleted", "", &event.TurnCompleted{
		Outcome: outcome,
		Summary: text,
		Steps:   snapshot.ExecutedSteps,
	})
	return &turn.Reply{Text: text, Final: true, Steps: snapshot.ExecutedSteps, Took: state.turn.Elapsed()}, cause
}

// pause waits for the retry delay, returning early when ctx is cancelled.
func (s *Service) pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) publish(ctx context.Context, state *turnState, eventType string, kind model.StepKind, data interface{}) {
	if s.events == nil {
		return
	}
	eCtx := &event.Context{
		SessionKey: state.turn.Key.String(),
		TurnID:     state.turn.ID,
		EventType:  eventType,
		ElapsedMs:  int(state.turn.Elapsed().Milliseconds()),
	}
	if kind != "" {
		eCtx.StepKind = string(kind)
	}
	_ = s.events.Publish(ctx, event.NewEvent[any](eCtx, data))
}

func (s *Service) hostLabel(sess *session.Session) string {
	if sess.Host != "" {
		return sess.Host
	}
	if s.host != nil && s.host.URL != "" {
		return s.host.URL
	}
	return "the target host"
}

func isBoundary(err error) bool {
	var authErr *executor.AuthenticationError
	var connErr *executor.ConnectionError
	return errors.As(err, &authErr) || errors.As(err, &connErr)
}

// failedResult observes a non-boundary execution error, a timeout, as a
// conventional exit 124 result so history and the tie-break see the attempt.
func failedResult(execErr error) *model.Result {
	return &model.Result{ExitCode: 124, Stderr: execErr.Error()}
}

func failureOf(step *model.Step) *model.Failure {
	return &model.Failure{
		StepID:         step.ID,
		Kind:           step.Kind,
		Description:    commandOf(step),
		Excerpt:        step.Result.Excerpt(),
		Classification: step.Classification,
	}
}

func commandOf(step *model.Step) string {
	switch step.Kind {
	case model.KindShellCommand:
		return step.Shell().Command
	case model.KindCloneRepository:
		clone := step.Clone()
		if clone.Destination != "" {
			return fmt.Sprintf("git clone %v %v", clone.URL, clone.Destination)
		}
		return fmt.Sprintf("git clone %v", clone.URL)
	}
	return string(step.Kind)
}

// resolveDir applies a cd target to the current working directory. The home
// directory is represented as empty so the executor starts commands at the
// login directory.
func resolveDir(current, target string) string {
	switch {
	case target == "~":
		return ""
	case strings.HasPrefix(target, "~/"):
		return target
	case strings.HasPrefix(target, "/"):
		return path.Clean(target)
	case current == "":
		return path.Clean(target)
	default:
		return path.Join(current, target)
	}
}

func affirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "yeah", "yep", "ok", "okay", "sure", "confirm", "proceed", "go ahead", "do it":
		return true
	}
	return false
}
