package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/opsly/model"
	"github.com/viant/opsly/service/executor"
)

func TestService_Classify(t *testing.T) {
	service, err := New()
	require.NoError(t, err)

	step := &model.Step{Kind: model.KindShellCommand, Payload: &model.ShellCommand{Command: "make test"}}

	testCases := []struct {
		description string
		result      *model.Result
		execErr     error
		expected    model.Classification
	}{
		{
			description: "timeout error is transient",
			execErr:     &executor.TimeoutError{Command: "sleep 600", Timeout: 30 * time.Second},
			expected:    model.ClassTransient,
		},
		{
			description: "shell timeout exit code is transient",
			result:      &model.Result{ExitCode: 124},
			expected:    model.ClassTransient,
		},
		{
			description: "connection reset is transient",
			result:      &model.Result{ExitCode: 1, Stderr: "curl: (56) Recv failure: Connection reset by peer"},
			expected:    model.ClassTransient,
		},
		{
			description: "name resolution failure is transient",
			result:      &model.Result{ExitCode: 6, Stderr: "Temporary failure in name resolution"},
			expected:    model.ClassTransient,
		},
		{
			description: "publickey rejection is fatal",
			result:      &model.Result{ExitCode: 128, Stderr: "git@github.com: Permission denied (publickey)."},
			expected:    model.ClassFatal,
		},
		{
			description: "disk full is fatal",
			result:      &model.Result{ExitCode: 1, Stderr: "tar: write error: No space left on device"},
			expected:    model.ClassFatal,
		},
		{
			description: "host key verification is fatal",
			result:      &model.Result{ExitCode: 255, Stderr: "Host key verification failed."},
			expected:    model.ClassFatal,
		},
		{
			description: "missing command is user actionable",
			result:      &model.Result{ExitCode: 127, Stderr: "bash: cargo: command not found"},
			expected:    model.ClassUserActionable,
		},
		{
			description: "exit 126 is user actionable",
			result:      &model.Result{ExitCode: 126, Stderr: ""},
			expected:    model.ClassUserActionable,
		},
		{
			description: "plain permission denied is user actionable",
			result:      &model.Result{ExitCode: 1, Stderr: "touch: cannot touch '/etc/x': Permission denied"},
			expected:    model.ClassUserActionable,
		},
		{
			description: "missing repository is user actionable",
			result:      &model.Result{ExitCode: 128, Stderr: "fatal: repository 'https://github.com/acme/nope.git/' not found"},
			expected:    model.ClassUserActionable,
		},
		{
			description: "existing clone destination is user actionable",
			result:      &model.Result{ExitCode: 128, Stderr: "fatal: destination path '/tmp/demo' already exists and is not an empty directory."},
			expected:    model.ClassUserActionable,
		},
		{
			description: "unmatched failure defaults to user actionable",
			result:      &model.Result{ExitCode: 3, Stderr: "make: *** [test] Error 3"},
			expected:    model.ClassUserActionable,
		},
		{
			description: "no result and no error defaults to user actionable",
			expected:    model.ClassUserActionable,
		},
	}

	for _, tc := range testCases {
		actual := service.Classify(step, tc.result, tc.execErr)
		assert.Equal(t, tc.expected, actual, tc.description)
	}
}

func TestService_Classify_CustomRules(t *testing.T) {
	service, err := New(&Rule{
		Name:           "oom",
		Classification: model.ClassFatal,
		Pattern:        `out of memory`,
	})
	require.NoError(t, err)

	step := &model.Step{Kind: model.KindShellCommand}
	actual := service.Classify(step, &model.Result{ExitCode: 137, Stderr: "Out of memory: Killed process 4242"}, nil)
	assert.Equal(t, model.ClassFatal, actual)

	actual = service.Classify(step, &model.Result{ExitCode: 1, Stderr: "whatever"}, nil)
	assert.Equal(t, model.ClassUserActionable, actual)
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(&Rule{Name: "broken", Classification: model.ClassFatal, Pattern: `([`})
	assert.Error(t, err)
}
