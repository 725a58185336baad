package extension

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/opsly/model"
)

func TestPayloads_Parse(t *testing.T) {
	payloads := NewPayloads()

	testCases := []struct {
		description string
		kind        model.StepKind
		payload     map[string]interface{}
		expected    interface{}
		expectError bool
	}{
		{
			description: "shell command",
			kind:        model.KindShellCommand,
			payload:     map[string]interface{}{"command": "ls -la", "timeoutMs": 2000},
			expected:    &model.ShellCommand{Command: "ls -la", TimeoutMs: 2000},
		},
		{
			description: "clone repository",
			kind:        model.KindCloneRepository,
			payload:     map[string]interface{}{"url": "https://github.com/viant/afs.git"},
			expected:    &model.CloneRepository{URL: "https://github.com/viant/afs.git"},
		},
		{
			description: "ask user",
			kind:        model.KindAskUser,
			payload:     map[string]interface{}{"question": "which branch?"},
			expected:    &model.AskUser{Question: "which branch?"},
		},
		{
			description: "terminate without payload",
			kind:        model.KindTerminate,
			payload:     nil,
			expected:    &model.Terminate{},
		},
		{
			description: "unknown kind",
			kind:        model.StepKind("RebootHost"),
			payload:     map[string]interface{}{},
			expectError: true,
		},
		{
			description: "missing required command",
			kind:        model.KindShellCommand,
			payload:     map[string]interface{}{"timeoutMs": 100},
			expectError: true,
		},
		{
			description: "blank question",
			kind:        model.KindAskUser,
			payload:     map[string]interface{}{"question": "   "},
			expectError: true,
		},
		{
			description: "unsupported terminate outcome",
			kind:        model.KindTerminate,
			payload:     map[string]interface{}{"outcome": "exploded"},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		actual, err := payloads.Parse(tc.kind, tc.payload)
		if tc.expectError {
			assert.NotNil(t, err, tc.description)
			continue
		}
		require.NoError(t, err, tc.description)
		assert.EqualValues(t, tc.expected, actual, tc.description)
	}
}

func TestPayloads_CustomKind(t *testing.T) {
	type restartService struct {
		Name string `json:"name"`
	}
	kind := model.StepKind("RestartService")
	payloads := NewPayloads(WithType(kind, reflect.TypeOf(restartService{})))

	actual, err := payloads.Parse(kind, map[string]interface{}{"name": "nginx"})
	require.NoError(t, err)
	assert.EqualValues(t, &restartService{Name: "nginx"}, actual)

	kinds := payloads.Types().Kinds()
	assert.Contains(t, kinds, kind)
	assert.Contains(t, kinds, model.KindShellCommand)
}
