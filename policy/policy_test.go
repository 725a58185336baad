package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Decide(t *testing.T) {
	testCases := []struct {
		description string
		policy      *Policy
		command     string
		expected    Decision
	}{
		{
			description: "nil policy allows everything",
			policy:      nil,
			command:     "rm -rf /tmp/x",
			expected:    Allow,
		},
		{
			description: "auto mode allows",
			policy:      &Policy{Mode: ModeAuto},
			command:     "ls -la",
			expected:    Allow,
		},
		{
			description: "block list beats mode",
			policy:      &Policy{Mode: ModeAuto, Block: []string{"shutdown"}},
			command:     "shutdown -h now",
			expected:    Refuse,
		},
		{
			description: "ask mode confirms",
			policy:      &Policy{Mode: ModeAsk},
			command:     "make deploy",
			expected:    Confirm,
		},
		{
			description: "ask mode skips confirmation for allow-listed prefix",
			policy:      &Policy{Mode: ModeAsk, Allow: []string{"git ", "ls"}},
			command:     "git status",
			expected:    Allow,
		},
		{
			description: "deny mode refuses",
			policy:      &Policy{Mode: ModeDeny},
			command:     "echo hello",
			expected:    Refuse,
		},
		{
			description: "auto with allow list refuses unlisted",
			policy:      &Policy{Mode: ModeAuto, Allow: []string{"kubectl get"}},
			command:     "kubectl delete pod x",
			expected:    Refuse,
		},
		{
			description: "prefix match is case-insensitive",
			policy:      &Policy{Mode: ModeAuto, Block: []string{"RM -RF"}},
			command:     "rm -rf build",
			expected:    Refuse,
		},
	}

	for _, tc := range testCases {
		actual, _ := tc.policy.Decide(tc.command)
		assert.Equal(t, tc.expected, actual, tc.description)
	}
}

func TestPolicy_ConfigRoundTrip(t *testing.T) {
	p := &Policy{Mode: ModeAsk, Allow: []string{"git "}, Block: []string{"reboot"}}
	restored := FromConfig(ToConfig(p))
	assert.EqualValues(t, p, restored)
	assert.Nil(t, FromConfig(nil))
	assert.Nil(t, ToConfig(nil))
}
