package opsly_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/gosh/runner"
	"github.com/viant/opsly"
	"github.com/viant/opsly/model"
	"github.com/viant/opsly/model/session"
	"github.com/viant/opsly/model/turn"
	"github.com/viant/opsly/service/controller"
	"github.com/viant/opsly/service/event"
	"github.com/viant/opsly/service/executor"
	"github.com/viant/opsly/service/planner"
	"github.com/viant/opsly/service/planner/scripted"
)

type runResult struct {
	stdout string
	status int
}

// scriptRunner replays canned command results, recording what it ran.
type scriptRunner struct {
	mux      sync.Mutex
	results  []runResult
	commands []string
}

func (r *scriptRunner) Run(ctx context.Context, command string, options ...runner.Option) (string, int, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.commands = append(r.commands, command)
	var next runResult
	if len(r.results) > 0 {
		next = r.results[0]
		r.results = r.results[1:]
	}
	return next.stdout, next.status, nil
}

func (r *scriptRunner) Close() error { return nil }

func (r *scriptRunner) Commands() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]string{}, r.commands...)
}

func newRuntime(t *testing.T, script *scripted.Client, aRunner *scriptRunner, options ...opsly.Option) *opsly.Runtime {
	t.Helper()
	base := []opsly.Option{
		opsly.WithPlannerClient(script),
		opsly.WithExecutorOptions(executor.WithRunnerFactory(
			func(ctx context.Context, host *executor.Host) (executor.Runner, error) {
				return aRunner, nil
			})),
		opsly.WithControllerOptions(controller.WithRetryDelay(time.Millisecond)),
	}
	srv := opsly.New(append(base, options...)...)
	rt := srv.Runtime()
	require.NoError(t, rt.Start(context.Background()))
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })
	return rt
}

func shellProposal(command string) *planner.Proposal {
	return &planner.Proposal{Kind: "ShellCommand", Payload: map[string]interface{}{"command": command}}
}

func askProposal(question string) *planner.Proposal {
	return &planner.Proposal{Kind: "AskUser", Payload: map[string]interface{}{"question": question}}
}

func doneProposal(reason string) *planner.Proposal {
	return &planner.Proposal{Done: true, Reason: reason}
}

func TestService_HandleTurn(t *testing.T) {
	script := scripted.New(shellProposal("uptime"), doneProposal("the box is healthy"))
	aRunner := &scriptRunner{results: []runResult{{stdout: "14:02 up 3 days", status: 0}}}
	rt := newRuntime(t, script, aRunner)
	ctx := context.Background()

	reply, err := rt.Handle(ctx, &opsly.Message{UserID: "alice", ChannelID: "ops", Text: "is the box healthy"})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.True(t, reply.Final)
	assert.Equal(t, 1, reply.Steps)
	assert.Contains(t, reply.Text, "Done: the box is healthy")
	assert.Contains(t, reply.Text, "ok `uptime`")
	assert.Equal(t, []string{"uptime"}, aRunner.Commands())

	sess, err := rt.Session(ctx, "alice", "ops")
	require.NoError(t, err)
	require.Len(t, sess.History, 1)
	assert.Equal(t, model.KindShellCommand, sess.History[0].Kind)
	assert.Equal(t, session.StatusIdle, sess.Status)
}

func TestService_SubmitAndWait(t *testing.T) {
	script := scripted.New(shellProposal("echo ready"), doneProposal("verified"))
	aRunner := &scriptRunner{results: []runResult{{stdout: "ready", status: 0}}}
	rt := newRuntime(t, script, aRunner)

	aTurn, wait, err := rt.Submit(context.Background(), &opsly.Message{UserID: "bob", ChannelID: "ops", Text: "verify the deploy"})
	require.NoError(t, err)
	reply, err := wait(context.Background(), 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.True(t, reply.Final)
	assert.Equal(t, turn.StateTerminal, aTurn.State)
}

func TestService_ClarifyAcrossTurns(t *testing.T) {
	script := scripted.New(
		askProposal("which environment?"),
		shellProposal("deploy --env staging"),
		doneProposal("deployed"))
	aRunner := &scriptRunner{results: []runResult{{stdout: "release rolled out", status: 0}}}
	rt := newRuntime(t, script, aRunner)
	ctx := context.Background()

	reply, err := rt.Handle(ctx, &opsly.Message{UserID: "alice", ChannelID: "ops", Text: "deploy the app"})
	require.NoError(t, err)
	assert.False(t, reply.Final)
	assert.Equal(t, "which environment?", reply.Text)

	pending, err := rt.Questions().ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	reply, err = rt.Handle(ctx, &opsly.Message{UserID: "alice", ChannelID: "ops", Text: "staging"})
	require.NoError(t, err)
	assert.True(t, reply.Final)
	assert.Contains(t, reply.Text, "Done: deployed")
	assert.Equal(t, []string{"deploy --env staging"}, aRunner.Commands())
}

func TestRuntime_SubscribeEvents(t *testing.T) {
	script := scripted.New(shellProposal("true"), doneProposal("done"))
	aRunner := &scriptRunner{}
	rt := newRuntime(t, script, aRunner)

	var mux sync.Mutex
	var kinds []string
	rt.Subscribe(func(e *event.Event[any]) {
		mux.Lock()
		defer mux.Unlock()
		kinds = append(kinds, e.Context.EventType)
	})

	_, err := rt.Handle(context.Background(), &opsly.Message{UserID: "alice", ChannelID: "ops", Text: "run it"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		for _, kind := range kinds {
			if kind == "turnCompleted" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	mux.Lock()
	defer mux.Unlock()
	assert.Contains(t, kinds, "stepStarted")
	assert.Contains(t, kinds, "stepCompleted")
}

func TestRuntime_Reset(t *testing.T) {
	script := scripted.New(shellProposal("hostname"), doneProposal("inspected"))
	aRunner := &scriptRunner{results: []runResult{{stdout: "dev01", status: 0}}}
	rt := newRuntime(t, script, aRunner)
	ctx := context.Background()

	_, err := rt.Handle(ctx, &opsly.Message{UserID: "alice", ChannelID: "ops", Text: "which host is this"})
	require.NoError(t, err)
	sess, err := rt.Session(ctx, "alice", "ops")
	require.NoError(t, err)
	require.Len(t, sess.History, 1)

	require.NoError(t, rt.Reset(ctx, "alice", "ops"))
	sess, err = rt.Session(ctx, "alice", "ops")
	require.NoError(t, err)
	assert.Empty(t, sess.History)
}

func TestService_DefaultAssembly(t *testing.T) {
	srv := opsly.New()
	config := srv.Config()
	assert.Equal(t, opsly.ProviderScripted, config.Planner.Provider)
	assert.Equal(t, 16, config.Planner.MaxSteps)
	assert.Equal(t, 100, config.Session.HistoryLimit)
	assert.Equal(t, 8, config.Dispatcher.Workers)
	require.NotNil(t, srv.Runtime())

	// an exhausted scripted client finishes the turn without touching a host
	reply, err := srv.Runtime().Handle(context.Background(), &opsly.Message{UserID: "alice", ChannelID: "ops", Text: "hello"})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.True(t, reply.Final)
}
