// Package classifier labels failed steps so the execution loop can decide
// between retrying, escalating to the user and stopping. Classification is
// rule based on exit code plus output pattern matching; it is deterministic
// and total, every failure gets exactly one label with UserActionable as the
// unmatched default.
package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/viant/opsly/model"
	"github.com/viant/opsly/service/executor"
)

// Rule labels a failure when one of its exit codes or its output pattern
// matches. Patterns are case-insensitive regexps compiled at construction.
type Rule struct {
	Name           string
	Classification model.Classification
	ExitCodes      []int
	Pattern        string
	pattern        *regexp.Regexp
}

func (r *Rule) init() error {
	if r.Pattern == "" {
		return nil
	}
	pattern, err := regexp.Compile("(?i)" + r.Pattern)
	if err != nil {
		return err
	}
	r.pattern = pattern
	return nil
}

func (r *Rule) matches(exitCode int, output string) bool {
	for _, code := range r.ExitCodes {
		if code == exitCode {
			return true
		}
	}
	return r.pattern != nil && r.pattern.MatchString(output)
}

// DefaultRules returns the built-in rule table. Order matters, first match
// wins: fatal credential and disk conditions are checked before the broader
// user-actionable patterns so that "permission denied (publickey)" never
// lands in the "permission denied" family.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			Name:           "credentials",
			Classification: model.ClassFatal,
			Pattern:        `authentication failed|permission denied \(publickey\)|too many authentication failures|host key verification failed`,
		},
		{
			Name:           "storage",
			Classification: model.ClassFatal,
			Pattern:        `no space left on device|read-only file system`,
		},
		{
			Name:           "network",
			Classification: model.ClassTransient,
			Pattern:        `connection reset|connection refused|connection timed out|network is unreachable|temporarily unavailable|temporary failure|tls handshake timeout|i/o timeout`,
		},
		{
			Name:           "shellTimeout",
			Classification: model.ClassTransient,
			ExitCodes:      []int{124},
		},
		{
			Name:           "missingCommand",
			Classification: model.ClassUserActionable,
			ExitCodes:      []int{127},
			Pattern:        `command not found`,
		},
		{
			Name:           "notExecutable",
			Classification: model.ClassUserActionable,
			ExitCodes:      []int{126},
		},
		{
			Name:           "userEnvironment",
			Classification: model.ClassUserActionable,
			Pattern:        `no such file or directory|permission denied|not a git repository|repository not found|could not read from remote repository|destination path .+ already exists`,
		},
	}
}

// Service classifies failed steps.
type Service struct {
	rules []*Rule
}

// New creates a classifier evaluating rules in the given order; with no rules
// the built-in table is used.
func New(rules ...*Rule) (*Service, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	for _, rule := range rules {
		if err := rule.init(); err != nil {
			return nil, fmt.Errorf("failed to compile rule %v: %w", rule.Name, err)
		}
	}
	return &Service{rules: rules}, nil
}

// Classify labels a failed step from its result and the executor error, if
// any. Timeouts are transient by definition, the remote process was already
// signalled and a retry is safe.
func (s *Service) Classify(step *model.Step, result *model.Result, execErr error) model.Classification {
	var timeoutErr *executor.TimeoutError
	if errors.As(execErr, &timeoutErr) {
		return model.ClassTransient
	}

	exitCode := 0
	builder := strings.Builder{}
	if result != nil {
		exitCode = result.ExitCode
		builder.WriteString(result.Stderr)
		builder.WriteString("\n")
		builder.WriteString(result.Stdout)
	}
	if execErr != nil {
		builder.WriteString("\n")
		builder.WriteString(execErr.Error())
	}

	output := builder.String()
	for _, rule := range s.rules {
		if rule.matches(exitCode, output) {
			return rule.Classification
		}
	}
	return model.ClassUserActionable
}
