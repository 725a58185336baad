package opsly

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/viant/afs"
	"github.com/viant/opsly/policy"
	"github.com/viant/opsly/service/executor"
	"github.com/viant/opsly/service/planner/openai"
	"gopkg.in/yaml.v3"
)

// Planner providers selectable through PlannerConfig.
const (
	ProviderScripted = "scripted"
	ProviderOpenAI   = "openai"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from JSON or YAML; zero-valued fields inherit their
// package defaults through Validate.
type Config struct {
	Target     executor.Host    `json:"target" yaml:"target"`
	Session    SessionConfig    `json:"session" yaml:"session"`
	Executor   ExecutorConfig   `json:"executor" yaml:"executor"`
	Planner    PlannerConfig    `json:"planner" yaml:"planner"`
	Dispatcher DispatcherConfig `json:"dispatcher" yaml:"dispatcher"`
	Events     EventsConfig     `json:"events" yaml:"events"`
	Policy     *policy.Config   `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// SessionConfig governs session persistence and lifecycle.
type SessionConfig struct {
	// Location is an afs base URL for session snapshots; empty keeps them in memory.
	Location        string `json:"location,omitempty" yaml:"location,omitempty"`
	HistoryLimit    int    `json:"historyLimit,omitempty" yaml:"historyLimit,omitempty"`
	SweepIntervalMs int    `json:"sweepIntervalMs,omitempty" yaml:"sweepIntervalMs,omitempty"`
	IdleTimeoutMs   int    `json:"idleTimeoutMs,omitempty" yaml:"idleTimeoutMs,omitempty"`
}

// ExecutorConfig governs the remote execution channel.
type ExecutorConfig struct {
	DefaultTimeoutMs int `json:"defaultTimeoutMs,omitempty" yaml:"defaultTimeoutMs,omitempty"`
	ConnectionTTLMs  int `json:"connectionTTLMs,omitempty" yaml:"connectionTTLMs,omitempty"`
	MaxPerHost       int `json:"maxPerHost,omitempty" yaml:"maxPerHost,omitempty"`
	MaxOutputKB      int `json:"maxOutputKB,omitempty" yaml:"maxOutputKB,omitempty"`
}

// PlannerConfig selects and bounds the step sequencer.
type PlannerConfig struct {
	Provider      string        `json:"provider,omitempty" yaml:"provider,omitempty"`
	MaxSteps      int           `json:"maxSteps,omitempty" yaml:"maxSteps,omitempty"`
	RecentHistory int           `json:"recentHistory,omitempty" yaml:"recentHistory,omitempty"`
	OpenAI        openai.Config `json:"openai,omitempty" yaml:"openai,omitempty"`
}

// DispatcherConfig governs the inbound turn queue.
type DispatcherConfig struct {
	Workers          int `json:"workers,omitempty" yaml:"workers,omitempty"`
	MaxBusyRetries   int `json:"maxBusyRetries,omitempty" yaml:"maxBusyRetries,omitempty"`
	BusyRetryDelayMs int `json:"busyRetryDelayMs,omitempty" yaml:"busyRetryDelayMs,omitempty"`
}

// EventsConfig selects the progress event transport.
type EventsConfig struct {
	Vendor string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	// Location is the spool base URL, required by the fs vendor only.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// DefaultConfig returns a Config populated with the same default values the
// constructors apply. Callers may modify the returned struct before passing
// it to New via WithConfig.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			HistoryLimit:    100,
			SweepIntervalMs: 60000,
			IdleTimeoutMs:   1800000,
		},
		Executor: ExecutorConfig{
			DefaultTimeoutMs: 30000,
			ConnectionTTLMs:  600000,
			MaxPerHost:       4,
			MaxOutputKB:      16,
		},
		Planner: PlannerConfig{
			Provider:      ProviderScripted,
			MaxSteps:      16,
			RecentHistory: 10,
		},
		Dispatcher: DispatcherConfig{
			Workers:          8,
			MaxBusyRetries:   3,
			BusyRetryDelayMs: 100,
		},
		Events: EventsConfig{
			Vendor: "memory",
		},
	}
}

// Validate fills zero-valued fields with their defaults and returns an error
// describing invalid settings, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	defaults := DefaultConfig()
	if c.Session.HistoryLimit == 0 {
		c.Session.HistoryLimit = defaults.Session.HistoryLimit
	}
	if c.Session.SweepIntervalMs == 0 {
		c.Session.SweepIntervalMs = defaults.Session.SweepIntervalMs
	}
	if c.Session.IdleTimeoutMs == 0 {
		c.Session.IdleTimeoutMs = defaults.Session.IdleTimeoutMs
	}
	if c.Executor.DefaultTimeoutMs == 0 {
		c.Executor.DefaultTimeoutMs = defaults.Executor.DefaultTimeoutMs
	}
	if c.Executor.ConnectionTTLMs == 0 {
		c.Executor.ConnectionTTLMs = defaults.Executor.ConnectionTTLMs
	}
	if c.Executor.MaxPerHost == 0 {
		c.Executor.MaxPerHost = defaults.Executor.MaxPerHost
	}
	if c.Executor.MaxOutputKB == 0 {
		c.Executor.MaxOutputKB = defaults.Executor.MaxOutputKB
	}
	if c.Planner.Provider == "" {
		c.Planner.Provider = defaults.Planner.Provider
	}
	if c.Planner.MaxSteps == 0 {
		c.Planner.MaxSteps = defaults.Planner.MaxSteps
	}
	if c.Planner.RecentHistory == 0 {
		c.Planner.RecentHistory = defaults.Planner.RecentHistory
	}
	if c.Dispatcher.Workers == 0 {
		c.Dispatcher.Workers = defaults.Dispatcher.Workers
	}
	if c.Dispatcher.MaxBusyRetries == 0 {
		c.Dispatcher.MaxBusyRetries = defaults.Dispatcher.MaxBusyRetries
	}
	if c.Dispatcher.BusyRetryDelayMs == 0 {
		c.Dispatcher.BusyRetryDelayMs = defaults.Dispatcher.BusyRetryDelayMs
	}
	if c.Events.Vendor == "" {
		c.Events.Vendor = defaults.Events.Vendor
	}

	if c.Dispatcher.Workers < 0 {
		return fmt.Errorf("dispatcher.workers must be > 0")
	}
	if c.Session.HistoryLimit < 0 {
		return fmt.Errorf("session.historyLimit must be > 0")
	}
	if c.Planner.MaxSteps < 0 {
		return fmt.Errorf("planner.maxSteps must be > 0")
	}
	switch c.Planner.Provider {
	case ProviderScripted, ProviderOpenAI:
	default:
		return fmt.Errorf("planner.provider must be %v or %v, had: %v", ProviderScripted, ProviderOpenAI, c.Planner.Provider)
	}
	switch c.Events.Vendor {
	case "memory":
	case "fs":
		if c.Events.Location == "" {
			return fmt.Errorf("events.location is required for the fs vendor")
		}
	default:
		return fmt.Errorf("events.vendor must be memory or fs, had: %v", c.Events.Vendor)
	}
	return nil
}

// LoadConfig reads a YAML configuration from the given afs URL, applying
// defaults for fields the document leaves out. ${env.NAME} expressions in the
// document are replaced with the matching environment variable before
// parsing, so secrets such as API keys can stay out of the file.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	config := &Config{}
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

const envExprPrefix = "${env."

// expandEnv substitutes ${env.NAME} expressions with the value of the named
// environment variable. Unset names expand to an empty string; text without a
// well formed expression is kept verbatim.
func expandEnv(text string) string {
	idx := strings.Index(text, envExprPrefix)
	if idx == -1 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for {
		b.WriteString(text[:idx])
		rest := text[idx+len(envExprPrefix):]
		end := strings.IndexByte(rest, '}')
		if end == -1 { // unterminated, keep the remainder as a literal
			b.WriteString(text[idx:])
			break
		}
		if name := rest[:end]; isEnvName(name) {
			b.WriteString(os.Getenv(name))
			text = rest[end+1:]
		} else { // not an env reference, emit the prefix and rescan the rest
			b.WriteString(envExprPrefix)
			text = rest
		}
		if idx = strings.Index(text, envExprPrefix); idx == -1 {
			b.WriteString(text)
			break
		}
	}
	return b.String()
}

func isEnvName(name string) bool {
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
