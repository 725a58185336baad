// Package executor runs shell commands on local or remote hosts over pooled
// authenticated channels. Connections are cached per host identity, refreshed
// after inactivity and capped with a per-host concurrency limit. Command
// failures are reported through the output; returned errors are reserved for
// connection, authentication and timeout conditions.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"
	"golang.org/x/crypto/ssh"

	"github.com/viant/opsly/internal/clock"
	"github.com/viant/opsly/tracing"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultTTL        = 10 * time.Minute
	defaultMaxPerHost = 4
	defaultMaxOutput  = 16 * 1024
)

// Runner is the command surface the executor needs from a host channel;
// *gosh.Service satisfies it.
type Runner interface {
	Run(ctx context.Context, command string, options ...runner.Option) (string, int, error)
	Close() error
}

// RunnerFactory establishes a channel to a host.
type RunnerFactory func(ctx context.Context, host *Host) (Runner, error)

// connection is one live channel together with its per-host usage cap.
type connection struct {
	runner   Runner
	limiter  chan struct{}
	lastUsed time.Time
}

// Service executes commands over pooled per-host connections.
type Service struct {
	defaultHost *Host
	secrets     *secret.Service
	newRunner   RunnerFactory

	ttl        time.Duration
	maxPerHost int
	maxOutput  int
	timeout    time.Duration

	connections map[string]*connection
	mux         sync.Mutex
}

// Option customises the executor service.
type Option func(*Service)

// WithDefaultHost sets the host used when an input does not name one.
func WithDefaultHost(host *Host) Option {
	return func(s *Service) {
		s.defaultHost = host
	}
}

// WithRunnerFactory overrides how host channels are established.
func WithRunnerFactory(factory RunnerFactory) Option {
	return func(s *Service) {
		s.newRunner = factory
	}
}

// WithConnectionTTL sets how long an unused connection stays cached.
func WithConnectionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithMaxPerHost caps concurrent commands per host.
func WithMaxPerHost(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxPerHost = limit
		}
	}
}

// WithMaxOutputBytes bounds the per-stream output returned to callers.
func WithMaxOutputBytes(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxOutput = limit
		}
	}
}

// WithDefaultTimeout sets the fallback command timeout.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// New creates an executor service.
func New(opts ...Option) *Service {
	ret := &Service{
		secrets:     secret.New(),
		ttl:         defaultTTL,
		maxPerHost:  defaultMaxPerHost,
		maxOutput:   defaultMaxOutput,
		timeout:     defaultTimeout,
		connections: make(map[string]*connection),
	}
	ret.newRunner = ret.openRunner
	for _, o := range opts {
		o(ret)
	}
	return ret
}

// Execute runs a single command on the input's host and captures its result.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	input.Init(s.defaultHost)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "executor.execute", "CLIENT")
	output, err := s.execute(ctx, input)
	if output != nil {
		span.WithAttributes(map[string]string{
			"host":     input.Host.URL,
			"exitCode": strconv.Itoa(output.ExitCode),
		})
	}
	tracing.EndSpan(span, err)
	return output, err
}

func (s *Service) execute(ctx context.Context, input *Input) (*Output, error) {
	conn, err := s.connection(ctx, input.Host)
	if err != nil {
		return nil, err
	}

	select {
	case conn.limiter <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-conn.limiter }()

	timeout := s.timeout
	if input.TimeoutMs > 0 {
		timeout = time.Duration(input.TimeoutMs) * time.Millisecond
	}
	command := input.Command
	if input.WorkingDirectory != "" {
		command = fmt.Sprintf("cd %s && %s", input.WorkingDirectory, command)
	}

	options := []runner.Option{runner.WithTimeout(int(timeout.Milliseconds()))}
	if len(input.Env) > 0 {
		options = append(options, runner.WithEnvironment(input.Env))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	started := clock.Now()
	stdout, status, runErr := conn.runner.Run(runCtx, command, options...)
	elapsed := clock.Now().Sub(started)

	if runErr != nil && errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}
	if elapsed >= timeout || errors.Is(runErr, context.DeadlineExceeded) {
		return nil, &TimeoutError{Command: input.Command, Timeout: timeout}
	}

	output := &Output{ExitCode: status, Duration: elapsed}
	if runErr != nil && status == 0 {
		output.ExitCode = 1
	}
	if stdout == "" && runErr != nil {
		stdout = runErr.Error()
	}
	if output.ExitCode == 0 {
		output.Stdout, output.Truncated, output.TotalBytes = s.truncate(stdout)
	} else {
		output.Stderr, output.Truncated, output.TotalBytes = s.truncate(stdout)
	}
	return output, nil
}

// Clone clones a repository as an atomic composite: existence precheck, the
// clone itself, then a verify step entering the destination. Any sub-step
// failure aborts the composite and the output names the failed stage.
func (s *Service) Clone(ctx context.Context, input *CloneInput) (ret *CloneOutput, err error) {
	input.Init(s.defaultHost)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "executor.clone", "CLIENT")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"repository": input.URL, "destination": input.Destination})

	stages := []struct {
		name    string
		command string
	}{
		{StagePrecheck, fmt.Sprintf("test ! -e %s", quoteArg(input.Destination))},
		{StageClone, fmt.Sprintf("git clone %s %s", quoteArg(input.URL), quoteArg(input.Destination))},
		{StageVerify, fmt.Sprintf("cd %s && test -d .git", quoteArg(input.Destination))},
	}

	ret = &CloneOutput{Destination: input.Destination}
	for _, stage := range stages {
		output, stageErr := s.Execute(ctx, &Input{
			Host:      input.Host,
			Command:   stage.command,
			TimeoutMs: input.TimeoutMs,
		})
		if stageErr != nil {
			ret.Stage = stage.name
			return ret, stageErr
		}
		ret.Output = *output
		ret.Stage = stage.name
		if !output.Success() {
			if stage.name == StagePrecheck && output.Stderr == "" {
				ret.Stderr = fmt.Sprintf("destination path '%s' already exists", input.Destination)
			}
			return ret, nil
		}
	}
	return ret, nil
}

// Close drains and closes all cached connections, aggregating errors.
func (s *Service) Close(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	var errs []string
	for id, conn := range s.connections {
		if err := conn.runner.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to close connection %s: %v", id, err))
		}
	}
	s.connections = make(map[string]*connection)
	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %s", strings.Join(errs, "; "))
	}
	return nil
}

// connection returns a cached channel for the host, re-establishing stale
// ones.
func (s *Service) connection(ctx context.Context, host *Host) (*connection, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	id := host.Identity()
	if conn, ok := s.connections[id]; ok {
		if clock.Now().Sub(conn.lastUsed) < s.ttl {
			conn.lastUsed = clock.Now()
			return conn, nil
		}
		_ = conn.runner.Close()
		delete(s.connections, id)
	}

	aRunner, err := s.newRunner(ctx, host)
	if err != nil {
		return nil, connectError(host.URL, err)
	}
	conn := &connection{
		runner:   aRunner,
		limiter:  make(chan struct{}, s.maxPerHost),
		lastUsed: clock.Now(),
	}
	s.connections[id] = conn
	return conn, nil
}

// openRunner establishes a gosh channel, local or over SSH.
func (s *Service) openRunner(ctx context.Context, host *Host) (Runner, error) {
	if host.Local() {
		return gosh.New(ctx, local.New())
	}
	config, err := s.sshConfig(ctx, host)
	if err != nil {
		return nil, err
	}
	return gosh.New(ctx, rssh.New(host.Address(), config))
}

// sshConfig resolves the host's SSH client config through its secret
// resource.
func (s *Service) sshConfig(ctx context.Context, host *Host) (*ssh.ClientConfig, error) {
	credentials := host.Credentials
	if credentials == "" {
		credentials = "localhost"
	}
	generic, err := s.secrets.GetCredentials(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return generic.SSH.Config(ctx)
}

// truncate bounds a stream to its last maxOutput bytes, reporting the
// original size.
func (s *Service) truncate(stream string) (string, bool, int) {
	total := len(stream)
	if total <= s.maxOutput {
		return stream, false, total
	}
	return stream[total-s.maxOutput:], true, total
}

// quoteArg single-quotes a shell argument.
func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t'\"$&|;<>()`") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
