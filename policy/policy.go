// Package policy provides a simple, optional execution gate that can be
// attached to a turn via context.  It is deliberately decoupled from the rest
// of the engine so that using it is entirely opt-in; loops that do not embed
// a Policy in their context keep the original "auto" behaviour.
package policy

import (
	"context"
	"strings"
)

// Execution modes recognised by the controller.
const (
	ModeAsk  = "ask"  // confirm every command with the user first
	ModeAuto = "auto" // execute automatically (default)
	ModeDeny = "deny" // block remote execution entirely
)

// Decision is the policy verdict for one command.
type Decision string

const (
	// Allow executes the command directly.
	Allow Decision = "allow"
	// Confirm routes the command through a user confirmation question.
	Confirm Decision = "confirm"
	// Refuse rejects the command; the refusal is observable to the planner.
	Refuse Decision = "refuse"
)

// Policy represents the execution gate for the current turn.
//
//   - Mode controls the high-level behaviour (ask / auto / deny).
//   - Allow, Block filter by command prefix regardless of Mode.
//
// A nil *Policy means "execute everything automatically" and is therefore the
// zero-cost default.
type Policy struct {
	Mode  string   // ask / auto / deny (default = auto)
	Allow []string // pre-approved command prefixes (empty => all)
	Block []string // refused command prefixes
}

// Config is the declarative, serialisable form of a Policy.
type Config struct {
	Mode  string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	Block []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:  p.Mode,
		Allow: append([]string(nil), p.Allow...),
		Block: append([]string(nil), p.Block...),
	}
}

// FromConfig converts a stored Config back to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:  c.Mode,
		Allow: append([]string(nil), c.Allow...),
		Block: append([]string(nil), c.Block...),
	}
}

// Decide evaluates the command against the gate. Block entries take priority;
// in ask mode pre-approved prefixes skip confirmation; deny refuses all.
func (p *Policy) Decide(command string) (Decision, string) {
	if p == nil {
		return Allow, ""
	}
	normalized := strings.ToLower(strings.TrimSpace(command))
	if prefix, ok := matchPrefix(p.Block, normalized); ok {
		return Refuse, "command blocked by policy: " + prefix
	}
	switch p.Mode {
	case ModeDeny:
		return Refuse, "remote execution disabled by policy"
	case ModeAsk:
		if _, ok := matchPrefix(p.Allow, normalized); ok {
			return Allow, ""
		}
		return Confirm, ""
	default:
		if len(p.Allow) == 0 {
			return Allow, ""
		}
		if _, ok := matchPrefix(p.Allow, normalized); ok {
			return Allow, ""
		}
		return Refuse, "command not on the policy allow list"
	}
}

func matchPrefix(prefixes []string, command string) (string, bool) {
	for _, prefix := range prefixes {
		candidate := strings.ToLower(strings.TrimSpace(prefix))
		if candidate == "" {
			continue
		}
		if strings.HasPrefix(command, candidate) {
			return prefix, true
		}
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
